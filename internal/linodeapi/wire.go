package linodeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/linops/internal/domain"
)

// dateLayout is the API's timestamp format. Fractional seconds in the input
// are accepted even though the layout omits them.
const dateLayout = "2006-01-02 15:04:05"

// scalar holds a loosely typed wire value. The API mixes strings, numbers
// and empty strings for the same field; "" means absent.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(str)
		return nil
	}
	*s = scalar(b)
	return nil
}

func (s scalar) String() string { return string(s) }

// intValue returns the integer value and whether one was present.
func (s scalar) intValue() (int64, bool, error) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer %q", v)
	}
	return int64(f), true, nil
}

func (s scalar) int64OrZero() int64 {
	n, _, _ := s.intValue()
	return n
}

func (s scalar) intOrZero() int {
	return int(s.int64OrZero())
}

// boolValue returns the boolean value and whether one was present.
func (s scalar) boolValue() (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "":
		return false, false
	case "0", "false":
		return false, true
	default:
		return true, true
	}
}

func (s scalar) boolOrFalse() bool {
	b, _ := s.boolValue()
	return b
}

// timeValue parses an API timestamp; nil means absent.
func (s scalar) timeValue() (*time.Time, error) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", v)
	}
	return &t, nil
}

// IsEmpty reports whether a DATA payload carries no records: null, an
// empty array, an empty object or an empty string.
func IsEmpty(data json.RawMessage) bool {
	switch string(bytes.TrimSpace(data)) {
	case "", "null", "[]", "{}", `""`:
		return true
	}
	return false
}

// ActionResult holds the identifiers returned by create and action calls.
// JobID is only meaningful when HasJob is true; some actions (resize, for
// one) return no job.
type ActionResult struct {
	LinodeID    int64
	DiskID      int64
	ConfigID    int64
	IPAddressID int64
	JobID       int64
	HasJob      bool
}

type wireActionResult struct {
	LinodeID    scalar `json:"LinodeID"`
	DiskID      scalar `json:"DiskID"`
	ConfigID    scalar `json:"ConfigID"`
	IPAddressID scalar `json:"IPAddressID"`
	JobID       scalar `json:"JobID"`
}

// DecodeActionResult decodes the DATA payload of a create or action call.
func DecodeActionResult(data json.RawMessage) (ActionResult, error) {
	if IsEmpty(data) {
		return ActionResult{}, nil
	}
	var w wireActionResult
	if err := json.Unmarshal(data, &w); err != nil {
		return ActionResult{}, fmt.Errorf("linodeapi: decode action result: %w", err)
	}
	jobID, hasJob, err := w.JobID.intValue()
	if err != nil {
		return ActionResult{}, fmt.Errorf("linodeapi: decode action result: %w", err)
	}
	return ActionResult{
		LinodeID:    w.LinodeID.int64OrZero(),
		DiskID:      w.DiskID.int64OrZero(),
		ConfigID:    w.ConfigID.int64OrZero(),
		IPAddressID: w.IPAddressID.int64OrZero(),
		JobID:       jobID,
		HasJob:      hasJob,
	}, nil
}

// --- Jobs ---

type wireJob struct {
	JobID       scalar `json:"JOBID"`
	LinodeID    scalar `json:"LINODEID"`
	Action      scalar `json:"ACTION"`
	Label       scalar `json:"LABEL"`
	Entered     scalar `json:"ENTERED_DT"`
	HostStart   scalar `json:"HOST_START_DT"`
	HostFinish  scalar `json:"HOST_FINISH_DT"`
	Duration    scalar `json:"DURATION"`
	HostMessage scalar `json:"HOST_MESSAGE"`
	HostSuccess scalar `json:"HOST_SUCCESS"`
}

func toDomainJob(w wireJob) (domain.Job, error) {
	entered, err := w.Entered.timeValue()
	if err != nil {
		return domain.Job{}, err
	}
	started, err := w.HostStart.timeValue()
	if err != nil {
		return domain.Job{}, err
	}
	finished, err := w.HostFinish.timeValue()
	if err != nil {
		return domain.Job{}, err
	}

	job := domain.Job{
		ID:         w.JobID.int64OrZero(),
		LinodeID:   w.LinodeID.int64OrZero(),
		Action:     w.Action.String(),
		Label:      w.Label.String(),
		StartedAt:  started,
		FinishedAt: finished,
		Message:    w.HostMessage.String(),
	}
	if entered != nil {
		job.EnteredAt = *entered
	}
	if d, ok, err := w.Duration.intValue(); err == nil && ok {
		secs := int(d)
		job.Duration = &secs
	}
	if success, ok := w.HostSuccess.boolValue(); ok {
		if success {
			job.Outcome = domain.OutcomeSucceeded
		} else {
			job.Outcome = domain.OutcomeFailed
		}
	}
	if job.FinishedAt != nil && job.Duration == nil {
		zero := 0
		job.Duration = &zero
	}

	return job.Normalize(), nil
}

// DecodeJobs decodes a linode.job.list payload.
func DecodeJobs(data json.RawMessage) ([]domain.Job, error) {
	var wire []wireJob
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode jobs: %w", err)
	}
	jobs := make([]domain.Job, 0, len(wire))
	for _, w := range wire {
		j, err := toDomainJob(w)
		if err != nil {
			return nil, fmt.Errorf("linodeapi: decode job %s: %w", w.JobID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// --- Linodes ---

type wireLinode struct {
	LinodeID     scalar `json:"LINODEID"`
	Label        scalar `json:"LABEL"`
	DatacenterID scalar `json:"DATACENTERID"`
	PlanID       scalar `json:"PLANID"`
	Status       scalar `json:"STATUS"`
	TotalRAM     scalar `json:"TOTALRAM"`
	TotalHD      scalar `json:"TOTALHD"`
}

// DecodeLinodes decodes a linode.list payload.
func DecodeLinodes(data json.RawMessage) ([]domain.Linode, error) {
	var wire []wireLinode
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode linodes: %w", err)
	}
	out := make([]domain.Linode, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Linode{
			ID:           w.LinodeID.int64OrZero(),
			Label:        w.Label.String(),
			DatacenterID: w.DatacenterID.int64OrZero(),
			PlanID:       w.PlanID.int64OrZero(),
			Status:       w.Status.intOrZero(),
			TotalRAM:     w.TotalRAM.intOrZero(),
			TotalHD:      w.TotalHD.intOrZero(),
		})
	}
	return out, nil
}

// --- Disks ---

type wireDisk struct {
	DiskID     scalar `json:"DISKID"`
	LinodeID   scalar `json:"LINODEID"`
	Label      scalar `json:"LABEL"`
	Type       scalar `json:"TYPE"`
	Status     scalar `json:"STATUS"`
	Size       scalar `json:"SIZE"`
	IsReadOnly scalar `json:"ISREADONLY"`
}

// DecodeDisks decodes a linode.disk.list payload.
func DecodeDisks(data json.RawMessage) ([]domain.Disk, error) {
	var wire []wireDisk
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode disks: %w", err)
	}
	out := make([]domain.Disk, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Disk{
			ID:       w.DiskID.int64OrZero(),
			LinodeID: w.LinodeID.int64OrZero(),
			Label:    w.Label.String(),
			Type:     w.Type.String(),
			Status:   w.Status.intOrZero(),
			SizeMB:   w.Size.intOrZero(),
			ReadOnly: w.IsReadOnly.boolOrFalse(),
		})
	}
	return out, nil
}

// --- Configs ---

type wireConfig struct {
	ConfigID              scalar `json:"ConfigID"`
	LinodeID              scalar `json:"LinodeID"`
	KernelID              scalar `json:"KernelID"`
	Label                 scalar `json:"Label"`
	Comments              scalar `json:"Comments"`
	RAMLimit              scalar `json:"RAMLimit"`
	DiskList              scalar `json:"DiskList"`
	RunLevel              scalar `json:"RunLevel"`
	RootDeviceNum         scalar `json:"RootDeviceNum"`
	RootDeviceCustom      scalar `json:"RootDeviceCustom"`
	RootDeviceRO          scalar `json:"RootDeviceRO"`
	HelperDisableUpdateDB scalar `json:"helper_disableUpdateDB"`
	HelperXen             scalar `json:"helper_xen"`
	HelperDepmod          scalar `json:"helper_depmod"`
	DevtmpfsAutomount     scalar `json:"devtmpfs_automount"`
}

// DecodeConfigs decodes a linode.config.list payload.
func DecodeConfigs(data json.RawMessage) ([]domain.Config, error) {
	var wire []wireConfig
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode configs: %w", err)
	}
	out := make([]domain.Config, 0, len(wire))
	for _, w := range wire {
		disks, err := ParseDiskList(w.DiskList.String())
		if err != nil {
			return nil, fmt.Errorf("linodeapi: decode config %s: %w", w.ConfigID, err)
		}
		out = append(out, domain.Config{
			ID:                    w.ConfigID.int64OrZero(),
			LinodeID:              w.LinodeID.int64OrZero(),
			KernelID:              w.KernelID.int64OrZero(),
			Label:                 w.Label.String(),
			Comments:              w.Comments.String(),
			RAMLimit:              w.RAMLimit.intOrZero(),
			DiskIDs:               disks,
			RunLevel:              w.RunLevel.String(),
			RootDeviceNum:         w.RootDeviceNum.intOrZero(),
			RootDeviceCustom:      w.RootDeviceCustom.String(),
			RootDeviceRO:          w.RootDeviceRO.boolOrFalse(),
			HelperDisableUpdateDB: w.HelperDisableUpdateDB.boolOrFalse(),
			HelperXen:             w.HelperXen.boolOrFalse(),
			HelperDepmod:          w.HelperDepmod.boolOrFalse(),
			DevtmpfsAutomount:     w.DevtmpfsAutomount.boolOrFalse(),
		})
	}
	return out, nil
}

// diskListSlots is the number of device slots in a configuration profile.
const diskListSlots = 9

// FormatDiskList renders disk IDs in the DiskList wire format: a comma
// separated list padded with empty slots to nine entries.
func FormatDiskList(ids []int64) string {
	n := len(ids)
	if n < diskListSlots {
		n = diskListSlots
	}
	parts := make([]string, n)
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ParseDiskList is the inverse of FormatDiskList. Empty slots are dropped.
func ParseDiskList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid disk id %q in disk list", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- IP addresses ---

type wireIP struct {
	IPAddressID scalar `json:"IPADDRESSID"`
	LinodeID    scalar `json:"LINODEID"`
	IPAddress   scalar `json:"IPADDRESS"`
	IsPublic    scalar `json:"ISPUBLIC"`
}

// DecodeIPs decodes a linode.ip.list payload.
func DecodeIPs(data json.RawMessage) ([]domain.IPAddress, error) {
	var wire []wireIP
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode ip addresses: %w", err)
	}
	out := make([]domain.IPAddress, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.IPAddress{
			ID:       w.IPAddressID.int64OrZero(),
			LinodeID: w.LinodeID.int64OrZero(),
			Address:  w.IPAddress.String(),
			Public:   w.IsPublic.boolOrFalse(),
		})
	}
	return out, nil
}

// --- Catalog ---

type wireDatacenter struct {
	DatacenterID scalar `json:"DATACENTERID"`
	Location     scalar `json:"LOCATION"`
	Abbr         scalar `json:"ABBR"`
}

// DecodeDatacenters decodes an avail.datacenters payload.
func DecodeDatacenters(data json.RawMessage) ([]domain.Datacenter, error) {
	var wire []wireDatacenter
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode datacenters: %w", err)
	}
	out := make([]domain.Datacenter, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Datacenter{
			ID:       w.DatacenterID.int64OrZero(),
			Location: w.Location.String(),
			Abbr:     w.Abbr.String(),
		})
	}
	return out, nil
}

type wirePlan struct {
	PlanID scalar `json:"PLANID"`
	Label  scalar `json:"LABEL"`
	RAM    scalar `json:"RAM"`
	Disk   scalar `json:"DISK"` // in GB
	Price  scalar `json:"PRICE"`
}

// DecodePlans decodes an avail.linodeplans payload. The disk allowance is
// converted from GB to MB.
func DecodePlans(data json.RawMessage) ([]domain.Plan, error) {
	var wire []wirePlan
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode plans: %w", err)
	}
	out := make([]domain.Plan, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Plan{
			ID:     w.PlanID.int64OrZero(),
			Label:  w.Label.String(),
			RAM:    w.RAM.intOrZero(),
			DiskMB: w.Disk.intOrZero() * 1024,
			Price:  w.Price.String(),
		})
	}
	return out, nil
}

type wireDistribution struct {
	DistributionID      scalar `json:"DISTRIBUTIONID"`
	Label               scalar `json:"LABEL"`
	Is64Bit             scalar `json:"IS64BIT"`
	MinImageSize        scalar `json:"MINIMAGESIZE"`
	RequiresPVOPSKernel scalar `json:"REQUIRESPVOPSKERNEL"`
}

// DecodeDistributions decodes an avail.distributions payload.
func DecodeDistributions(data json.RawMessage) ([]domain.Distribution, error) {
	var wire []wireDistribution
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode distributions: %w", err)
	}
	out := make([]domain.Distribution, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Distribution{
			ID:                  w.DistributionID.int64OrZero(),
			Label:               w.Label.String(),
			Is64Bit:             w.Is64Bit.boolOrFalse(),
			MinImageSizeMB:      w.MinImageSize.intOrZero(),
			RequiresPVOPSKernel: w.RequiresPVOPSKernel.boolOrFalse(),
		})
	}
	return out, nil
}

type wireKernel struct {
	KernelID scalar `json:"KERNELID"`
	Label    scalar `json:"LABEL"`
	IsXen    scalar `json:"ISXEN"`
	IsPVOPS  scalar `json:"ISPVOPS"`
}

// DecodeKernels decodes an avail.kernels payload.
func DecodeKernels(data json.RawMessage) ([]domain.Kernel, error) {
	var wire []wireKernel
	if err := decodeList(data, &wire); err != nil {
		return nil, fmt.Errorf("linodeapi: decode kernels: %w", err)
	}
	out := make([]domain.Kernel, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.Kernel{
			ID:    w.KernelID.int64OrZero(),
			Label: w.Label.String(),
			IsXen: w.IsXen.boolOrFalse(),
			PVOPS: w.IsPVOPS.boolOrFalse(),
		})
	}
	return out, nil
}

// decodeList unmarshals a DATA array, treating an empty payload as an
// empty list.
func decodeList(data json.RawMessage, out any) error {
	if IsEmpty(data) {
		return nil
	}
	return json.Unmarshal(data, out)
}
