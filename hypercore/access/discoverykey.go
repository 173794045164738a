// Copyright 2026 The Nova26 Authors
// This file is part of Nova26.
//
// Nova26 is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Nova26 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Nova26. If not, see <http://www.gnu.org/licenses/>.

package access

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// DeriveDiscoveryKey deterministically derives a hex-encoded discovery
// key for storeName from secret via HKDF-SHA256, so peers holding the
// same secret converge on the same topic without exchanging it (spec
// §4.8).
func DeriveDiscoveryKey(storeName string, secret []byte) (string, error) {
	kdf := hkdf.New(sha256.New, secret, nil, []byte("nova26-discovery:"+storeName))
	out := make([]byte, 32)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return "", errors.Wrap(err, "access: derive discovery key")
	}
	return hex.EncodeToString(out), nil
}
