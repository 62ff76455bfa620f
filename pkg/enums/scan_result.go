package enums

// ScanResult is the outcome of resolving a scanned bag payload.
type ScanResult string

const (
	ScanSuccess     ScanResult = "success"
	ScanAlreadyDone ScanResult = "already_done"
	ScanNotFound    ScanResult = "not_found"
)

// String implements fmt.Stringer.
func (s ScanResult) String() string {
	return string(s)
}
