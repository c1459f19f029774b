package ports

import "time"

const (
	DefaultPollInterval = 2 * time.Second         // Interval between detection status requests
	CacheFreshness      = 30 * time.Minute        // How long a cached scan may be restored
	UserRefreshInterval = 1500 * time.Millisecond // How often the token store is checked for changes
	MinDepositUSD       = 10                      // Smallest deposit accepted for review
	USDTDecimals        = 6                       // amount_raw scale of deposits
)

// GenericPollError is shown when a status request fails for any reason
// other than the job being gone.
const GenericPollError = "failed to fetch scan status, please resubmit"
