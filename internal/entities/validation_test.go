package entities

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTargetAcceptsEVMAddresses(t *testing.T) {
	valid := []string{
		"0x1111111111111111111111111111111111111111",
		"0xdAC17F958D2ee523a2206206994597C13D831ec7",
		"0xABCDEFabcdef0123456789ABCDEFabcdef012345",
		"  0x1111111111111111111111111111111111111111\n",
	}

	for _, chain := range SupportedChains {
		for _, address := range valid {
			require.NoError(t, ValidateTarget(chain, address), "%s on %s", address, chain)
		}
	}
}

func TestValidateTargetRejectsMalformedAddresses(t *testing.T) {
	invalid := []string{
		"1111111111111111111111111111111111111111",
		"0x111111111111111111111111111111111111111",
		"0x11111111111111111111111111111111111111111",
		"0X1111111111111111111111111111111111111111",
		"0xg111111111111111111111111111111111111111",
		"0x1111111111111111111111111111111111111111 extra",
		"0x",
		"hello",
		"EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA",
	}

	for _, address := range invalid {
		err := ValidateTarget(ChainEthereum, address)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "%q must be rejected", address)
		require.Equal(t, "token_address", validationErr.Field)
		require.NotEmpty(t, validationErr.Message)
	}
}

func TestValidateTargetEmptyAndChain(t *testing.T) {
	var validationErr *ValidationError

	err := ValidateTarget(ChainBSC, "   ")
	require.True(t, errors.As(err, &validationErr))
	require.Equal(t, "token_address", validationErr.Field)

	err = ValidateTarget("solana", "0x1111111111111111111111111111111111111111")
	require.True(t, errors.As(err, &validationErr))
	require.Equal(t, "chain", validationErr.Field)
}

// Every 42-character string that is not 0x + hex is rejected; flipping any
// single hex digit of a valid address to a non-hex rune breaks it.
func TestValidateTargetSingleRuneCorruption(t *testing.T) {
	base := "0x1111111111111111111111111111111111111111"
	for i := 2; i < len(base); i++ {
		corrupted := base[:i] + "z" + base[i+1:]
		require.Error(t, ValidateTarget(ChainBase, corrupted), corrupted)
	}
	require.Error(t, ValidateTarget(ChainBase, strings.Replace(base, "0x", "1x", 1)))
}

func TestChecksumAddressAndTxHash(t *testing.T) {
	require.Equal(t, "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		ChecksumAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"))

	require.True(t, IsTxHash("0x"+strings.Repeat("ab", 32)))
	require.False(t, IsTxHash("0x"+strings.Repeat("ab", 20)))
	require.False(t, IsTxHash("not-a-hash"))
}
