package easy

const version = "0.4.1"

// Version returns the library version string.
func Version() string {
	return version
}
