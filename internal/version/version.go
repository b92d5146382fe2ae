// ABOUTME: Version and product constants for chime binaries
// ABOUTME: Reported in server/hello and printed by -version
package version

const (
	Version      = "0.3.0"
	Product      = "Chime"
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version, e.g. "Chime 0.3.0"
func String() string {
	return Product + " " + Version
}
