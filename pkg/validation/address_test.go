package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0x3928da62f59501fcabb35b387402d08136fe3c60"))
	assert.NoError(t, ValidateAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))

	assert.Error(t, ValidateAddress(""))
	// Missing 0x prefix
	assert.Error(t, ValidateAddress("3928da62f59501fcabb35b387402d08136fe3c60"))
	// Too short
	assert.Error(t, ValidateAddress("0x3928da62f595"))
	// Too long (22-byte address)
	assert.Error(t, ValidateAddress("0x3928da62f59501fcabb35b387402d08136fe3c60abcd"))
	// Non-hex characters
	assert.Error(t, ValidateAddress("0xZZ28da62f59501fcabb35b387402d08136fe3c60"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0x036cbd53842c5426634e7929541ec2318f3dcf7e", NormalizeAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))
	assert.Equal(t, "", NormalizeAddress(""))
}

func TestValidateAndNormalizeAddress(t *testing.T) {
	addr, err := ValidateAndNormalizeAddress("0x3928DA62F59501FCABB35B387402D08136FE3C60")
	require.NoError(t, err)
	assert.Equal(t, "0x3928da62f59501fcabb35b387402d08136fe3c60", addr)

	_, err = ValidateAndNormalizeAddress("not-an-address")
	assert.Error(t, err)
}
