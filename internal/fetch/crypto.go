package fetch

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/famomatic/hlsv1/internal/types"
)

// SequenceIV derives the default AES IV for a segment without an explicit
// IV: the 0-based playlist position as a 16-byte big-endian integer.
func SequenceIV(index int) []byte {
	iv := make([]byte, 16)
	v := uint64(index)
	for p := 15; p >= 0 && v > 0; p-- {
		iv[p] = byte(v & 0xff)
		v >>= 8
	}
	return iv
}

// DecryptAES128 performs AES-128-CBC decryption with PKCS#7 unpadding.
func DecryptAES128(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &types.DecryptionError{Reason: fmt.Sprintf("bad key length %d", len(key))}
	}
	if len(iv) != block.BlockSize() {
		return nil, &types.DecryptionError{Reason: fmt.Sprintf("bad IV length %d", len(iv))}
	}
	if len(data) == 0 {
		return data, nil
	}
	if len(data)%block.BlockSize() != 0 {
		return nil, &types.DecryptionError{Reason: "ciphertext not block aligned"}
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return stripPKCS7(out)
}

func stripPKCS7(data []byte) ([]byte, error) {
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, &types.DecryptionError{Reason: "invalid padding"}
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, &types.DecryptionError{Reason: "invalid padding"}
		}
	}
	return data[:len(data)-padding], nil
}
