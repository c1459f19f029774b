package entities

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var evmAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidationError is returned when user input is rejected before any request
// reaches the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidEVMAddress checks the strict 0x + 40 hex form.
func IsValidEVMAddress(address string) bool {
	return evmAddressPattern.MatchString(address)
}

// ValidateTarget checks a scan target. The address is trimmed first.
func ValidateTarget(chain Chain, address string) error {
	if !chain.IsSupported() {
		return &ValidationError{Field: "chain", Message: fmt.Sprintf("unsupported chain %q", chain)}
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return &ValidationError{Field: "token_address", Message: "address is required"}
	}

	if chain.IsEVM() && !IsValidEVMAddress(address) {
		return &ValidationError{Field: "token_address", Message: "invalid address format, expected 0x followed by 40 hex characters"}
	}

	return nil
}

// ChecksumAddress returns the EIP-55 form of a valid EVM address.
func ChecksumAddress(address string) string {
	return common.HexToAddress(strings.TrimSpace(address)).Hex()
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hash.
func IsTxHash(s string) bool {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return len(b) == common.HashLength
}
