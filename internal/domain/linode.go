package domain

// Linode is a virtual machine on the account.
type Linode struct {
	ID           int64  `json:"id"`
	Label        string `json:"label"`
	DatacenterID int64  `json:"datacenter_id"`
	PlanID       int64  `json:"plan_id"`
	Status       int    `json:"status"`
	TotalRAM     int    `json:"total_ram"`
	TotalHD      int    `json:"total_hd"`

	// Disks and Configs are populated by the provisioning workflow; list
	// calls leave them empty.
	Disks   []Disk   `json:"disks,omitempty"`
	Configs []Config `json:"configs,omitempty"`
}

// Linode status codes as reported by linode.list.
const (
	LinodeStatusBeingCreated = -1
	LinodeStatusNew          = 0
	LinodeStatusRunning      = 1
	LinodeStatusPoweredOff   = 2
)

// Disk is a disk image attached to a Linode.
type Disk struct {
	ID       int64  `json:"id"`
	LinodeID int64  `json:"linode_id"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "ext3", "ext4", "swap", "raw"
	Status   int    `json:"status"`
	SizeMB   int    `json:"size_mb"`
	ReadOnly bool   `json:"read_only"`
}

// Config is a boot configuration profile.
type Config struct {
	ID       int64   `json:"id"`
	LinodeID int64   `json:"linode_id"`
	KernelID int64   `json:"kernel_id"`
	Label    string  `json:"label"`
	Comments string  `json:"comments,omitempty"`
	RAMLimit int     `json:"ram_limit"`
	DiskIDs  []int64 `json:"disk_ids"`
	RunLevel string  `json:"run_level"`

	RootDeviceNum    int    `json:"root_device_num"`
	RootDeviceCustom string `json:"root_device_custom,omitempty"`
	RootDeviceRO     bool   `json:"root_device_ro"`

	HelperDisableUpdateDB bool `json:"helper_disable_update_db"`
	HelperXen             bool `json:"helper_xen"`
	HelperDepmod          bool `json:"helper_depmod"`
	DevtmpfsAutomount     bool `json:"devtmpfs_automount"`
}

// ConfigOpts holds the optional fields of a configuration profile for
// create and update calls. Nil pointers are left out of the request.
type ConfigOpts struct {
	Label            string
	Comments         *string
	RAMLimit         *int
	DiskIDs          []int64
	RunLevel         *string
	RootDeviceNum    *int
	RootDeviceCustom *string
	RootDeviceRO     *bool

	HelperDisableUpdateDB *bool
	HelperXen             *bool
	HelperDepmod          *bool
	DevtmpfsAutomount     *bool
}

// IPAddress is an address assigned to a Linode.
type IPAddress struct {
	ID       int64  `json:"id"`
	LinodeID int64  `json:"linode_id"`
	Address  string `json:"address"`
	Public   bool   `json:"public"`
}
