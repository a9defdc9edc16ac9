package collector

// Schema version.
const SchemaVersion = "1.0.0"

// Sentinel values rendered when a control is not configured for a policy.
const (
	SentinelOff = "off"
)

// Percentage constants.
const (
	MaxPercentage = 100
)

// Report columns, in Row.Cells order.
var Columns = []string{
	"Number",
	"File Name",
	"Policy Name",
	"Mode",
	"AGs Deny(%)",
	"RCs Deny",
	"RCs Alert",
	"Slow Post",
	"CR Deny",
}

// Concurrency bounds.
const (
	DefaultConcurrency = 1
	MaxConcurrency     = 32
)
