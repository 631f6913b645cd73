package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, AESKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestGenerateX25519KeyPair(t *testing.T) {
	kp1, err := GenerateX25519KeyPair()
	require.NoError(t, err)

	// clamped
	assert.Zero(t, kp1.PrivateKey[0]&7)
	assert.Zero(t, kp1.PrivateKey[31]&128)
	assert.NotZero(t, kp1.PrivateKey[31]&64)

	derived, err := X25519PrivateToPublic(kp1.PrivateKey[:])
	require.NoError(t, err)
	assert.Equal(t, kp1.PublicKey[:], derived)

	kp2, err := GenerateX25519KeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, kp1.PublicKey, kp2.PublicKey, "ephemeral keys must differ per connection")
}

func TestComputeSharedSecret(t *testing.T) {
	client, err := GenerateX25519KeyPair()
	require.NoError(t, err)
	server, err := GenerateX25519KeyPair()
	require.NoError(t, err)

	clientSecret, err := ComputeSharedSecret(client.PrivateKey[:], server.PublicKey[:])
	require.NoError(t, err)
	serverSecret, err := ComputeSharedSecret(server.PrivateKey[:], client.PublicKey[:])
	require.NoError(t, err)

	assert.Equal(t, clientSecret, serverSecret)
	assert.Len(t, clientSecret, X25519KeySize)
}

func TestComputeSharedSecret_InvalidKeySizes(t *testing.T) {
	valid := make([]byte, X25519KeySize)
	valid[0] = 9

	tests := []struct {
		name       string
		privateKey []byte
		publicKey  []byte
	}{
		{"short private key", make([]byte, 16), valid},
		{"long private key", make([]byte, 64), valid},
		{"short public key", valid, make([]byte, 16)},
		{"long public key", valid, make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSharedSecret(tt.privateKey, tt.publicKey)
			assert.ErrorIs(t, err, ErrInvalidKeySize)
		})
	}
}

func TestComputeSharedSecret_RejectsLowOrderPoints(t *testing.T) {
	kp, err := GenerateX25519KeyPair()
	require.NoError(t, err)

	for i, lowOrder := range lowOrderPoints {
		_, err := ComputeSharedSecret(kp.PrivateKey[:], lowOrder[:])
		assert.ErrorIs(t, err, ErrInvalidPublicKey, "point %d", i)
	}
}

func TestDeriveSessionKey(t *testing.T) {
	secret := randomKey(t)

	k1, err := DeriveSessionKey(secret, "token-a")
	require.NoError(t, err)
	assert.Len(t, k1, AESKeySize)

	again, err := DeriveSessionKey(secret, "token-a")
	require.NoError(t, err)
	assert.Equal(t, k1, again)

	k2, err := DeriveSessionKey(secret, "token-b")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	k3, err := DeriveSessionKey(randomKey(t), "token-a")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveSessionKey(make([]byte, 16), "token-a")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestSessionCipherRoundTrip(t *testing.T) {
	c, err := NewSessionCipher(randomKey(t))
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"unicode", []byte("Hello, 世界! 🎉")},
		{"long", bytes.Repeat([]byte("a"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Seal(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, sealed, len(tt.plaintext)+NonceSize+TagSize)

			opened, err := c.Open(sealed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, opened))
		})
	}
}

func TestSealUsesFreshNonces(t *testing.T) {
	c, err := NewSessionCipher(randomKey(t))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sealed, err := c.Seal([]byte("same message"))
		require.NoError(t, err)
		nonce := string(sealed[:NonceSize])
		require.False(t, seen[nonce], "nonce reused at iteration %d", i)
		seen[nonce] = true
	}
}

func TestOpenRejects(t *testing.T) {
	key := randomKey(t)
	sealed, err := EncryptMessage(key, []byte("secret"))
	require.NoError(t, err)

	t.Run("short input", func(t *testing.T) {
		_, err := DecryptMessage(key, make([]byte, NonceSize+TagSize-1))
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := DecryptMessage(randomKey(t), sealed)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("tampered body", func(t *testing.T) {
		bad := append([]byte{}, sealed...)
		bad[NonceSize] ^= 0x01
		_, err := DecryptMessage(key, bad)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("tampered tag", func(t *testing.T) {
		bad := append([]byte{}, sealed...)
		bad[len(bad)-1] ^= 0x80
		_, err := DecryptMessage(key, bad)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestInvalidKeySize(t *testing.T) {
	_, err := NewSessionCipher(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = EncryptMessage(nil, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = DecryptMessage(make([]byte, 31), make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestIsLowOrderPoint(t *testing.T) {
	assert.True(t, isLowOrderPoint(make([]byte, 31)))
	assert.True(t, isLowOrderPoint(make([]byte, 32)))

	kp, err := GenerateX25519KeyPair()
	require.NoError(t, err)
	assert.False(t, isLowOrderPoint(kp.PublicKey[:]))
}

// TestHandshakeKeyAgreement walks both sides of a login: each derives the
// same session key and can read the other's frames.
func TestHandshakeKeyAgreement(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		client, err := GenerateX25519KeyPair()
		if err != nil {
			rt.Fatalf("client keys: %v", err)
		}
		server, err := GenerateX25519KeyPair()
		if err != nil {
			rt.Fatalf("server keys: %v", err)
		}
		token := rapid.String().Draw(rt, "token")
		msg := rapid.SliceOf(rapid.Byte()).Draw(rt, "msg")

		cs, err := ComputeSharedSecret(client.PrivateKey[:], server.PublicKey[:])
		if err != nil {
			rt.Fatalf("client secret: %v", err)
		}
		ss, err := ComputeSharedSecret(server.PrivateKey[:], client.PublicKey[:])
		if err != nil {
			rt.Fatalf("server secret: %v", err)
		}
		ck, _ := DeriveSessionKey(cs, token)
		sk, _ := DeriveSessionKey(ss, token)

		sealed, err := EncryptMessage(ck, msg)
		if err != nil {
			rt.Fatalf("seal: %v", err)
		}
		opened, err := DecryptMessage(sk, sealed)
		if err != nil {
			rt.Fatalf("open: %v", err)
		}
		if !bytes.Equal(msg, opened) {
			rt.Fatalf("payload mismatch")
		}
	})
}

func BenchmarkSeal(b *testing.B) {
	key := make([]byte, AESKeySize)
	c, _ := NewSessionCipher(key)
	msg := bytes.Repeat([]byte("x"), 256)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Seal(msg)
	}
}
