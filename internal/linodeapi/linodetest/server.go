// Package linodetest provides an in-memory Linode API for tests. It speaks
// the same form-encoded protocol as the real endpoint, including batch
// calls, and keeps enough state for multi-step workflows.
package linodetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Failure makes an action fail with an API error.
type Failure struct {
	Code    int
	Message string
}

// Server is a fake Linode API. Exported fields may be changed by tests
// before the first request; use the methods afterwards.
type Server struct {
	*httptest.Server

	// JobPolls is the number of job lookups after which a job finishes.
	JobPolls int

	// Fail maps an action to the API error it reports.
	Fail map[string]Failure

	// FailJobs maps an action to the host message of its job, which then
	// finishes unsuccessfully.
	FailJobs map[string]string

	// HideDisks drops created disks from linode.disk.list.
	HideDisks bool

	mu      sync.Mutex
	nextID  int64
	linodes map[int64]*linode
	jobs    map[int64]*jobRecord
	calls   []string
	batches int
}

type linode struct {
	id, datacenterID, planID int64
	label                    string
	status                   int
	disks                    []map[string]any
	configs                  []map[string]any
	ips                      []map[string]any
}

type jobRecord struct {
	id, linodeID int64
	action       string
	label        string
	polls        int
	failMessage  string
}

// NewServer starts a fake API. It is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		JobPolls: 1,
		Fail:     map[string]Failure{},
		FailJobs: map[string]string{},
		nextID:   1000,
		linodes:  map[int64]*linode{},
		jobs:     map[int64]*jobRecord{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// Calls returns every action performed so far, with batch members listed
// individually.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many times action was performed.
func (s *Server) CallCount(action string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == action {
			n++
		}
	}
	return n
}

// Batches returns the number of batch requests received.
func (s *Server) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// LinodeIDs returns the IDs of all existing Linodes.
func (s *Server) LinodeIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.linodes))
	for id := range s.linodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Status returns the status of a Linode, or false if it does not exist.
func (s *Server) Status(id int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.linodes[id]
	if !ok {
		return 0, false
	}
	return l.status, true
}

// AddLinode creates a Linode directly, bypassing the API.
func (s *Server) AddLinode(label string, datacenterID, planID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.linodes[id] = &linode{id: id, label: label, datacenterID: datacenterID, planID: planID, status: 2}
	return id
}

type envelope struct {
	Action string           `json:"ACTION"`
	Errors []map[string]any `json:"ERRORARRAY"`
	Data   any              `json:"DATA"`
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("api_key") == "" {
		writeJSON(w, errorEnvelope("", 4, "Authentication failed"))
		return
	}

	action := r.PostForm.Get("api_action")
	if action != "batch" {
		params := map[string]any{}
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		writeJSON(w, s.dispatch(action, params))
		return
	}

	var requests []map[string]any
	if err := json.Unmarshal([]byte(r.PostForm.Get("api_requestArray")), &requests); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()

	out := make([]envelope, 0, len(requests))
	for _, req := range requests {
		a, _ := req["api_action"].(string)
		out = append(out, s.dispatch(a, req))
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func errorEnvelope(action string, code int, msg string) envelope {
	return envelope{
		Action: action,
		Errors: []map[string]any{{"ERRORCODE": code, "ERRORMESSAGE": msg}},
		Data:   map[string]any{},
	}
}

func (s *Server) dispatch(action string, p map[string]any) envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, action)
	if f, ok := s.Fail[action]; ok {
		return errorEnvelope(action, f.Code, f.Message)
	}

	data, err := s.handle(action, p)
	if err != nil {
		return errorEnvelope(action, err.code, err.msg)
	}
	// Encoded under the lock so later mutations do not race the response.
	raw, _ := json.Marshal(data)
	return envelope{Action: action, Errors: []map[string]any{}, Data: json.RawMessage(raw)}
}

type apiErr struct {
	code int
	msg  string
}

func notFound(what string, id int64) *apiErr {
	return &apiErr{code: 5, msg: fmt.Sprintf("%s %d not found", what, id)}
}

func (s *Server) handle(action string, p map[string]any) (any, *apiErr) {
	switch action {
	case "avail.datacenters":
		return Datacenters, nil
	case "avail.linodeplans":
		return Plans, nil
	case "avail.distributions":
		return Distributions, nil
	case "avail.kernels":
		return Kernels, nil
	case "linode.list":
		return s.listLinodes(intParam(p, "LinodeID")), nil
	case "linode.create", "linode.clone":
		id := s.id()
		s.linodes[id] = &linode{
			id:           id,
			label:        fmt.Sprintf("linode%d", id),
			datacenterID: intParam(p, "DatacenterID"),
			planID:       intParam(p, "PlanID"),
			status:       -1,
		}
		s.linodes[id].ips = []map[string]any{{
			"IPADDRESSID": s.id(), "LINODEID": id, "IPADDRESS": "203.0.113.10", "ISPUBLIC": 1,
		}}
		return map[string]any{"LinodeID": id}, nil
	}

	l, ok := s.linodes[intParam(p, "LinodeID")]
	if !ok {
		return nil, notFound("linode", intParam(p, "LinodeID"))
	}

	switch action {
	case "linode.delete":
		if len(l.disks) > 0 && !boolParam(p, "skipChecks") {
			return nil, &apiErr{code: 8, msg: "Linode must have no disks before delete"}
		}
		delete(s.linodes, l.id)
		return map[string]any{"LinodeID": l.id}, nil
	case "linode.update":
		if label := strParam(p, "Label"); label != "" {
			l.label = label
		}
		return map[string]any{"LinodeID": l.id}, nil
	case "linode.boot", "linode.reboot":
		l.status = 1
		return map[string]any{"JobID": s.newJob(l.id, action, "System Boot")}, nil
	case "linode.shutdown":
		l.status = 2
		return map[string]any{"JobID": s.newJob(l.id, action, "System Shutdown")}, nil
	case "linode.resize":
		l.planID = intParam(p, "PlanID")
		return map[string]any{}, nil
	case "linode.job.list":
		return s.listJobs(l.id, intParam(p, "JobID"), boolParam(p, "pendingOnly")), nil
	case "linode.disk.list":
		if s.HideDisks {
			return []any{}, nil
		}
		return l.disks, nil
	case "linode.disk.createfromdistribution", "linode.disk.create":
		diskID := s.id()
		typ := "ext3"
		if t := strParam(p, "Type"); t != "" {
			typ = t
		}
		l.disks = append(l.disks, map[string]any{
			"DISKID": diskID, "LINODEID": l.id, "LABEL": strParam(p, "Label"), "TYPE": typ,
			"STATUS": 1, "SIZE": intParam(p, "Size"), "ISREADONLY": 0,
		})
		return map[string]any{"DiskID": diskID, "JobID": s.newJob(l.id, action, "Create disk")}, nil
	case "linode.disk.resize", "linode.disk.delete":
		idx := findByID(l.disks, "DISKID", intParam(p, "DiskID"))
		if idx < 0 {
			return nil, notFound("disk", intParam(p, "DiskID"))
		}
		if action == "linode.disk.delete" {
			l.disks = append(l.disks[:idx], l.disks[idx+1:]...)
		} else {
			l.disks[idx]["SIZE"] = intParam(p, "size")
		}
		return map[string]any{"JobID": s.newJob(l.id, action, "Disk operation")}, nil
	case "linode.disk.update":
		idx := findByID(l.disks, "DISKID", intParam(p, "DiskID"))
		if idx < 0 {
			return nil, notFound("disk", intParam(p, "DiskID"))
		}
		l.disks[idx]["LABEL"] = strParam(p, "Label")
		return map[string]any{"DiskID": intParam(p, "DiskID")}, nil
	case "linode.config.list":
		if id := intParam(p, "ConfigID"); id != 0 {
			if idx := findByID(l.configs, "ConfigID", id); idx >= 0 {
				return l.configs[idx : idx+1], nil
			}
			return []any{}, nil
		}
		return l.configs, nil
	case "linode.config.create":
		configID := s.id()
		cfg := map[string]any{"ConfigID": configID, "LinodeID": l.id}
		for k, v := range p {
			if k != "api_action" && k != "api_key" && k != "LinodeID" {
				cfg[k] = v
			}
		}
		l.configs = append(l.configs, cfg)
		return map[string]any{"ConfigID": configID}, nil
	case "linode.config.update":
		idx := findByID(l.configs, "ConfigID", intParam(p, "ConfigID"))
		if idx < 0 {
			return nil, notFound("config", intParam(p, "ConfigID"))
		}
		for k, v := range p {
			if k != "api_action" && k != "api_key" && k != "LinodeID" && k != "ConfigID" {
				l.configs[idx][k] = v
			}
		}
		return map[string]any{"ConfigID": intParam(p, "ConfigID")}, nil
	case "linode.config.delete":
		idx := findByID(l.configs, "ConfigID", intParam(p, "ConfigID"))
		if idx < 0 {
			return nil, notFound("config", intParam(p, "ConfigID"))
		}
		l.configs = append(l.configs[:idx], l.configs[idx+1:]...)
		return map[string]any{"ConfigID": intParam(p, "ConfigID")}, nil
	case "linode.ip.list":
		if id := intParam(p, "IPAddressID"); id != 0 {
			if idx := findByID(l.ips, "IPADDRESSID", id); idx >= 0 {
				return l.ips[idx : idx+1], nil
			}
			return []any{}, nil
		}
		return l.ips, nil
	case "linode.ip.addprivate":
		ipID := s.id()
		l.ips = append(l.ips, map[string]any{
			"IPADDRESSID": ipID, "LINODEID": l.id, "IPADDRESS": "192.168.130.7", "ISPUBLIC": 0,
		})
		return map[string]any{"IPAddressID": ipID}, nil
	}

	return nil, &apiErr{code: 3, msg: "action not understood: " + action}
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) newJob(linodeID int64, action, label string) int64 {
	id := s.id()
	s.jobs[id] = &jobRecord{
		id:          id,
		linodeID:    linodeID,
		action:      action,
		label:       label,
		failMessage: s.FailJobs[action],
	}
	return id
}

func (s *Server) listLinodes(id int64) []map[string]any {
	out := []map[string]any{}
	ids := make([]int64, 0, len(s.linodes))
	for lid := range s.linodes {
		ids = append(ids, lid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, lid := range ids {
		if id != 0 && lid != id {
			continue
		}
		l := s.linodes[lid]
		out = append(out, map[string]any{
			"LINODEID": l.id, "LABEL": l.label, "DATACENTERID": l.datacenterID,
			"PLANID": l.planID, "STATUS": l.status, "TOTALRAM": 1024, "TOTALHD": 24576,
		})
	}
	return out
}

func (s *Server) listJobs(linodeID, jobID int64, pendingOnly bool) []map[string]any {
	out := []map[string]any{}
	for _, j := range s.sortedJobs() {
		if j.linodeID != linodeID || (jobID != 0 && j.id != jobID) {
			continue
		}
		j.polls++
		finished := j.polls >= s.JobPolls
		if pendingOnly && finished {
			continue
		}
		rec := map[string]any{
			"JOBID": j.id, "LINODEID": j.linodeID, "ACTION": j.action, "LABEL": j.label,
			"ENTERED_DT": "2024-03-01 10:00:00.0", "HOST_START_DT": "", "HOST_FINISH_DT": "",
			"DURATION": "", "HOST_MESSAGE": "", "HOST_SUCCESS": "",
		}
		if finished {
			rec["HOST_START_DT"] = "2024-03-01 10:00:01.0"
			rec["HOST_FINISH_DT"] = "2024-03-01 10:00:09.0"
			rec["DURATION"] = 8
			rec["HOST_SUCCESS"] = 1
			if j.failMessage != "" {
				rec["HOST_SUCCESS"] = 0
				rec["HOST_MESSAGE"] = j.failMessage
			}
		}
		out = append(out, rec)
	}
	return out
}

func (s *Server) sortedJobs() []*jobRecord {
	jobs := make([]*jobRecord, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].id < jobs[k].id })
	return jobs
}

func findByID(records []map[string]any, field string, id int64) int {
	for i, r := range records {
		if toInt(r[field]) == id {
			return i
		}
	}
	return -1
}

// intParam reads a parameter sent either as a form string or as a JSON
// number inside a batch.
func intParam(p map[string]any, key string) int64 {
	return toInt(p[key])
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	}
	return 0
}

func boolParam(p map[string]any, key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v == "true" || v == "1"
	}
	return false
}

func strParam(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// Catalog listings served by every Server.
var (
	Datacenters = []map[string]any{
		{"DATACENTERID": 2, "LOCATION": "Dallas, TX, USA", "ABBR": "dallas"},
		{"DATACENTERID": 6, "LOCATION": "Newark, NJ, USA", "ABBR": "newark"},
		{"DATACENTERID": 7, "LOCATION": "London, England, UK", "ABBR": "london"},
	}
	Plans = []map[string]any{
		{"PLANID": 1, "LABEL": "Linode 1024", "RAM": 1024, "DISK": 24, "PRICE": 10.00},
		{"PLANID": 2, "LABEL": "Linode 2048", "RAM": 2048, "DISK": 48, "PRICE": 20.00},
	}
	Distributions = []map[string]any{
		{"DISTRIBUTIONID": 86, "LABEL": "Debian 7", "IS64BIT": 0, "MINIMAGESIZE": 600, "REQUIRESPVOPSKERNEL": 1},
		{"DISTRIBUTIONID": 89, "LABEL": "Debian 7 64bit", "IS64BIT": 1, "MINIMAGESIZE": 600, "REQUIRESPVOPSKERNEL": 1},
	}
	Kernels = []map[string]any{
		{"KERNELID": 137, "LABEL": "Latest 32 bit (3.9.3-x86-linode52)", "ISXEN": 1, "ISPVOPS": 1},
		{"KERNELID": 138, "LABEL": "Latest 64 bit (3.9.3-x86_64-linode33)", "ISXEN": 1, "ISPVOPS": 1},
	}
)

// PollInterval is a poll interval suited to the fake server.
const PollInterval = time.Millisecond
