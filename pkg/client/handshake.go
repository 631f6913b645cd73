package client

import (
	"context"
	"fmt"
	"time"

	"github.com/aeolun/marain/pkg/client/crypto"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
)

// LoginResult is what a successful handshake leaves behind
type LoginResult struct {
	Token           string
	ServerPublicKey [protocol.KeySize]byte
	SharedSecret    []byte
}

// Handshake connects to addr and logs in as username: it generates an
// ephemeral X25519 key pair, sends it with the login, agrees on a shared
// secret with the server's reply key and starts the encrypted session.
// Any failure is fatal and the connection is closed.
func Handshake(ctx context.Context, addr, username string, opts Options) (*Session, *LoginResult, error) {
	opts = opts.withDefaults()

	kp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	s, err := Dial(hctx, addr, opts)
	if err != nil {
		return nil, nil, err
	}

	res, err := login(hctx, s, username, kp)
	if err != nil {
		_ = s.Close()
		if opts.Metrics != nil {
			opts.Metrics.RecordHandshake(false)
		}
		return nil, nil, err
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordHandshake(true)
	}

	opts.Logger.Info("handshake complete", zap.String("username", username), zap.String("server", s.Address()))
	return s, res, nil
}

func login(ctx context.Context, s *Session, username string, kp *crypto.X25519KeyPair) (*LoginResult, error) {
	token, serverKey, err := s.Login(ctx, protocol.ClientMsg{
		Body:      &protocol.LoginBody{Username: username, PublicKey: kp.PublicKey},
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	secret, err := crypto.ComputeSharedSecret(kp.PrivateKey[:], serverKey[:])
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	if err := s.SetSharedSecret(secret, token); err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ServerPublicKey: serverKey, SharedSecret: secret}, nil
}
