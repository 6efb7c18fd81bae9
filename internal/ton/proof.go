package ton

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// TON Connect ton_proof verification, per
// https://docs.ton.org/develop/dapps/ton-connect/sign#checking-ton_proof-on-server-side
const (
	tonProofPrefix   = "ton-proof-item-v2/"
	tonConnectPrefix = "ton-connect"

	// MaxProofAge bounds replay of old proofs.
	MaxProofAge = 5 * time.Minute
)

// ProofData is the ton_proof payload a wallet submits at login.
type ProofData struct {
	Address   string `json:"address"` // raw: workchain + 32-byte hash
	Network   string `json:"network"` // "-239" mainnet, "-3" testnet
	PublicKey string `json:"public_key"`
	Proof     Proof  `json:"proof"`
}

type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`   // server-issued nonce
	Signature string      `json:"signature"` // base64
}

type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// VerifyProof checks a ton_proof signature against the wallet's public key.
// addressHash is the 32-byte account hash from the raw address.
func VerifyProof(pubKeyHex string, addressHash []byte, workchain int32, proof Proof, allowedDomains []string) error {
	proofTime := time.Unix(proof.Timestamp, 0)
	if time.Since(proofTime) > MaxProofAge {
		return fmt.Errorf("proof expired: %s old", time.Since(proofTime).Round(time.Second))
	}
	if proofTime.After(time.Now().Add(time.Minute)) {
		return fmt.Errorf("proof timestamp is in the future")
	}

	if !domainAllowed(proof.Domain.Value, allowedDomains) {
		return fmt.Errorf("domain %q not in allowed list", proof.Domain.Value)
	}

	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature base64: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}

	msgHash := sha256.Sum256(ProofMessage(addressHash, workchain, proof))

	signed := make([]byte, 0, 2+len(tonConnectPrefix)+sha256.Size)
	signed = append(signed, 0xff, 0xff)
	signed = append(signed, tonConnectPrefix...)
	signed = append(signed, msgHash[:]...)
	finalHash := sha256.Sum256(signed)

	if !ed25519.Verify(pubKey, finalHash[:], sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// ProofMessage assembles the byte string wallets sign:
// "ton-proof-item-v2/" ++ workchain(4 LE) ++ address_hash(32) ++
// domain_len(4 LE) ++ domain ++ timestamp(8 LE) ++ payload
func ProofMessage(addressHash []byte, workchain int32, proof Proof) []byte {
	msg := make([]byte, 0, len(tonProofPrefix)+4+len(addressHash)+4+len(proof.Domain.Value)+8+len(proof.Payload))
	msg = append(msg, tonProofPrefix...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(workchain))
	msg = append(msg, addressHash...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(proof.Domain.LengthBytes))
	msg = append(msg, proof.Domain.Value...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(proof.Timestamp))
	msg = append(msg, proof.Payload...)
	return msg
}

func domainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, d := range allowed {
		if d == domain {
			return true
		}
	}
	return false
}

// ParseRawAddress splits a raw "workchain:hex" address into its parts.
func ParseRawAddress(raw string) (int32, []byte, error) {
	var workchain int32
	var hashHex string
	if _, err := fmt.Sscanf(raw, "%d:%s", &workchain, &hashHex); err != nil {
		return 0, nil, fmt.Errorf("invalid raw address %q: %w", raw, err)
	}
	hash, err := hex.DecodeString(hashHex)
	if err != nil || len(hash) != 32 {
		return 0, nil, fmt.Errorf("invalid address hash in %q", raw)
	}
	return workchain, hash, nil
}
