package web3

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// signatureLength is the size of an ECDSA signature in bytes.
	signatureLength = ethcrypto.SignatureLength
	// signingPrefix is the prefix added when hashing Ethereum messages.
	signingPrefix = "Ethereum Signed Message:\n"
)

// Signer wraps an ECDSA private key used both to sign the node's own
// outgoing transactions and, on the API side, to recover the address of a
// caller from a signed request.
type Signer ecdsa.PrivateKey

// Address returns the Ethereum address derived from the signer's public key.
func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.PublicKey)
}

// HexPrivateKey returns the hex-encoded private key.
func (s *Signer) HexPrivateKey() string {
	return common.Bytes2Hex(ethcrypto.FromECDSA((*ecdsa.PrivateKey)(s)))
}

// Sign signs msg, hashing it with the Ethereum message prefix first.
func (s *Signer) Sign(msg []byte) (*ECDSASignature, error) {
	return Sign(msg, (*ecdsa.PrivateKey)(s))
}

// NewSigner generates a fresh ECDSA key pair.
func NewSigner() (*Signer, error) {
	s, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromHex loads a signer from a hex-encoded private key.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	s, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse key: %w", err)
	}
	return (*Signer)(s), nil
}

// Sign signs an Ethereum message (adding the corresponding prefix) using the
// given private key.
func Sign(msg []byte, privKey *ecdsa.PrivateKey) (*ECDSASignature, error) {
	ethSignature, err := ethcrypto.Sign(HashMessage(msg), privKey)
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return new(ECDSASignature).SetBytes(ethSignature), nil
}

// HashMessage hashes data with the Ethereum Signed Message prefix.
func HashMessage(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d%s", signingPrefix, len(data), data)
	return ethcrypto.Keccak256(buf.Bytes())
}

// ECDSASignature is an Ethereum ECDSA signature in (R, S, recovery) form.
type ECDSASignature struct {
	R        *big.Int
	S        *big.Int
	recovery byte
}

// BytesToSignature decodes a 65-byte signature.
func BytesToSignature(signature []byte) (*ECDSASignature, error) {
	if len(signature) < signatureLength-1 {
		return nil, fmt.Errorf("signature length is less than %d", signatureLength-1)
	}
	sig := new(ECDSASignature).SetBytes(signature)
	if sig == nil {
		return nil, fmt.Errorf("wrong signature bytes")
	}
	return sig, nil
}

// Valid reports whether both R and S are set.
func (sig *ECDSASignature) Valid() bool {
	return sig.R != nil && sig.S != nil
}

// Bytes returns the 65-byte wire form (R || S || recovery), with the
// recovery byte adjusted to go-ethereum's 0/1 convention.
func (sig *ECDSASignature) Bytes() []byte {
	r := make([]byte, 32)
	s := make([]byte, 32)
	rBytes, sBytes := sig.R.Bytes(), sig.S.Bytes()
	copy(r[32-len(rBytes):], rBytes)
	copy(s[32-len(sBytes):], sBytes)

	v := sig.recovery
	if v > 1 {
		v -= 27
	}
	return append(r, append(s, v)...)
}

// SetBytes sets sig from a 64- or 65-byte signature.
func (sig *ECDSASignature) SetBytes(signature []byte) *ECDSASignature {
	if len(signature) < signatureLength-1 {
		return nil
	}
	sig.R = new(big.Int).SetBytes(signature[:32])
	sig.S = new(big.Int).SetBytes(signature[32:64])

	if len(signature) == signatureLength {
		v := signature[64]
		if v >= 27 {
			v -= 27
		}
		if v > 3 {
			return nil
		}
		sig.recovery = v
	} else {
		sig.recovery = 0
	}
	return sig
}

// Verify recovers the address behind sig over signedInput and reports
// whether it matches expectedAddress.
func (sig *ECDSASignature) Verify(signedInput []byte, expectedAddress common.Address) bool {
	if !sig.Valid() {
		return false
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(signedInput), sig.Bytes())
	if err != nil {
		return false
	}
	return bytes.Equal(ethcrypto.PubkeyToAddress(*pubKey).Bytes(), expectedAddress.Bytes())
}

// AddrFromSignature recovers the address that produced signature over message.
func AddrFromSignature(message []byte, signature *ECDSASignature) (common.Address, error) {
	if signature == nil || !signature.Valid() {
		return common.Address{}, fmt.Errorf("signature is nil")
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(message), signature.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("sigToPub: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}
