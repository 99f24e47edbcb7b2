package domain

// Datacenter is a deployment location.
type Datacenter struct {
	ID       int64  `json:"id"`
	Location string `json:"location"` // e.g. "Newark, NJ, USA"
	Abbr     string `json:"abbr,omitempty"`
}

// Plan is a Linode size offering.
type Plan struct {
	ID     int64  `json:"id"`
	Label  string `json:"label"` // e.g. "Linode 1024"
	RAM    int    `json:"ram"`   // in MB
	DiskMB int    `json:"disk_mb"`
	Price  string `json:"price,omitempty"`
}

// Distribution is an installable operating system image.
type Distribution struct {
	ID                  int64  `json:"id"`
	Label               string `json:"label"` // e.g. "Debian 7"
	Is64Bit             bool   `json:"is_64bit"`
	MinImageSizeMB      int    `json:"min_image_size_mb"`
	RequiresPVOPSKernel bool   `json:"requires_pvops_kernel"`
}

// Kernel is a bootable kernel.
type Kernel struct {
	ID    int64  `json:"id"`
	Label string `json:"label"` // e.g. "Latest 64 bit (3.9.3-x86_64-linode33)"
	IsXen bool   `json:"is_xen"`
	PVOPS bool   `json:"pvops"`
}
