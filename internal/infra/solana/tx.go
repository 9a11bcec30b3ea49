package solana

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
)

const (
	signatureSize = 64
	pubkeySize    = 32
	blockhashSize = 32
)

// systemProgramID is all zero bytes ("11111111111111111111111111111111").
var systemProgramID [pubkeySize]byte

// systemTransferIndex is the SystemProgram instruction index for Transfer.
const systemTransferIndex uint32 = 2

// PrivateKeyFrom interprets decrypted key material as an ed25519 signing key:
// either the 64-byte private key (seed || pubkey, Solana keypair layout) or a
// 32-byte seed.
func PrivateKeyFrom(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(key, raw)
		return key, nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("signing key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// PublicKeyBase58 returns the signer's address.
func PublicKeyBase58(key ed25519.PrivateKey) string {
	return Base58Encode(key.Public().(ed25519.PublicKey))
}

// encodeShortvec writes a compact-u16 length prefix (Solana shortvec).
func encodeShortvec(n int) []byte {
	var out []byte
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// decodeShortvec reads a compact-u16 length prefix, returning the value and
// the number of bytes consumed.
func decodeShortvec(b []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3 && i < len(b); i++ {
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("malformed shortvec prefix")
}

// SignTransaction fills signature slot 0 of a serialized Solana transaction
// (legacy or versioned): compact-array of signatures followed by the message.
// The venue hands back the transaction with placeholder signatures; the
// message bytes are exactly what gets signed.
func SignTransaction(tx []byte, key ed25519.PrivateKey) ([]byte, error) {
	numSigs, prefixLen, err := decodeShortvec(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if numSigs < 1 {
		return nil, fmt.Errorf("transaction has no signature slots")
	}
	msgStart := prefixLen + numSigs*signatureSize
	if len(tx) <= msgStart {
		return nil, fmt.Errorf("transaction truncated: %d bytes", len(tx))
	}

	signed := make([]byte, len(tx))
	copy(signed, tx)
	sig := ed25519.Sign(key, tx[msgStart:])
	copy(signed[prefixLen:], sig)
	return signed, nil
}

// NewTransferTx builds and signs a legacy SystemProgram transfer of lamports
// from the key's address to a base58 destination. Used for the tip
// transaction that rides in a bundle next to the swap.
func NewTransferTx(key ed25519.PrivateKey, toBase58 string, lamports uint64, blockhashBase58 string) ([]byte, error) {
	to, err := Base58Decode(toBase58)
	if err != nil || len(to) != pubkeySize {
		return nil, fmt.Errorf("invalid destination address %q", toBase58)
	}
	blockhash, err := Base58Decode(blockhashBase58)
	if err != nil || len(blockhash) != blockhashSize {
		return nil, fmt.Errorf("invalid blockhash %q", blockhashBase58)
	}
	from := key.Public().(ed25519.PublicKey)

	// Message header: 1 required signature, 0 readonly signed,
	// 1 readonly unsigned (the system program).
	var msg []byte
	msg = append(msg, 1, 0, 1)

	// Account keys: payer (writable signer), destination (writable),
	// system program (readonly).
	msg = append(msg, encodeShortvec(3)...)
	msg = append(msg, from...)
	msg = append(msg, to...)
	msg = append(msg, systemProgramID[:]...)

	msg = append(msg, blockhash...)

	// One transfer instruction: program index 2, accounts [0, 1],
	// data = u32 instruction index || u64 lamports (little-endian).
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg = append(msg, encodeShortvec(1)...)
	msg = append(msg, 2)
	msg = append(msg, encodeShortvec(2)...)
	msg = append(msg, 0, 1)
	msg = append(msg, encodeShortvec(len(data))...)
	msg = append(msg, data...)

	sig := ed25519.Sign(key, msg)

	var tx []byte
	tx = append(tx, encodeShortvec(1)...)
	tx = append(tx, sig...)
	tx = append(tx, msg...)
	return tx, nil
}
