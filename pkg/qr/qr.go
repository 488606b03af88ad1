package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Options control how a batch is encoded. Zero values fall back to defaults.
type Options struct {
	Size     int    // pixel width/height of the PNG
	Level    string // error correction: L, M, Q, H
	MaxSize  int
}

const DefaultSize = 256

// Encoder turns payloads into QR PNGs. The ledger knows nothing about it;
// callers must consume credits before encoding.
type Encoder interface {
	Encode(content string, opts Options) ([]byte, error)
}

type DefaultEncoder struct{}

func (DefaultEncoder) Encode(content string, opts Options) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("empty QR content")
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	if opts.MaxSize > 0 && size > opts.MaxSize {
		size = opts.MaxSize
	}
	level, err := recoveryLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(content, level, size)
}

func recoveryLevel(s string) (qrcode.RecoveryLevel, error) {
	switch s {
	case "", "M", "m":
		return qrcode.Medium, nil
	case "L", "l":
		return qrcode.Low, nil
	case "Q", "q":
		return qrcode.High, nil
	case "H", "h":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("invalid recovery level %q (use L, M, Q or H)", s)
	}
}
