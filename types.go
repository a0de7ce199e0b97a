package sesiweb

// ProductSpec selects a product line on one platform for build queries.
//
// Product is a download-service product name such as "houdini",
// "houdini-py3", "docker" or "sidefxlabs". Platform is "win64", "macos",
// "macosx_arm64" or "linux"; the server ignores it for products that are not
// platform-specific, but it must still be present.
type ProductSpec struct {
	Product  string `json:"product" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

// BuildSpec identifies a single build of a product. Version and Build narrow
// the selection; left empty, the server resolves the latest matching build.
type BuildSpec struct {
	Product  string `json:"product" validate:"required"`
	Platform string `json:"platform" validate:"required"`
	Version  string `json:"version,omitempty"`
	Build    string `json:"build,omitempty"`
}

// DailyBuild is one entry of a latest-builds listing, newest first.
type DailyBuild struct {
	Product  string `json:"product"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Build    string `json:"build"`
	Date     string `json:"date"`
	Release  string `json:"release"` // "gold" or "devel"
	Status   string `json:"status"`  // "good" or "bad"
}

// BuildDownload carries the signed download location and integrity metadata
// for one resolved build.
type BuildDownload struct {
	DownloadURL  string `json:"download_url"`
	Filename     string `json:"filename"`
	Hash         string `json:"hash"` // MD5 hex digest of the installer
	Date         string `json:"date"`
	ReleasesList string `json:"releases_list"`
	Status       string `json:"status"`
	Size         int64  `json:"size"`
}

// LicenseServer names the license server a non-commercial license is tied
// to. ServerCode is the host ID reported by the server, Version the Houdini
// version the license should cover, Products the product keystring.
type LicenseServer struct {
	ServerName string `json:"server_name" validate:"required"`
	ServerCode string `json:"server_code" validate:"required"`
	Version    string `json:"version" validate:"required"`
	Products   string `json:"products" validate:"required"`
}

// License is an issued non-commercial key set with its matching server key.
type License struct {
	LicenseKeys []string `json:"license_keys"`
	ServerKey   string   `json:"server_key"`
}
