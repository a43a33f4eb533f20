// Package password hashea y verifica passwords de cuentas.
//
// Los servicios de dominio guardan hashes argon2id (PHC string) o bcrypt
// ($2a$/$2b$/$2y$). Verify detecta el esquema por prefijo para comparar con el
// mismo algoritmo con el que se guardó.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

var ErrEmptyPassword = errors.New("empty password")

// DummyHash es un PHC argon2id con parámetros Default que no corresponde a
// ningún password. Verificar contra él cuesta lo mismo que contra una cuenta
// real; se usa cuando la cuenta no existe o no está activa.
const DummyHash = "$argon2id$v=19$m=65536,t=3,p=1$Yml6Z2F0ZS1kdW1teS1zYWx0$LR17BTg3hk9acckRLe37cnnaBYA+R2P9CgXWlAOJyIM"

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// HashBcrypt genera un hash bcrypt con el costo dado (0 = default).
func HashBcrypt(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compara plain contra un hash almacenado. Un hash vacío o de un
// esquema desconocido nunca verifica.
func Verify(plain, stored string) bool {
	switch {
	case plain == "" || stored == "":
		return false
	case strings.HasPrefix(stored, "$argon2id$"):
		return verifyArgon2id(plain, stored)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	default:
		return false
	}
}

func verifyArgon2id(plain, phc string) bool {
	// $argon2id$v=19$m=..,t=..,p=..$salt$dk -> ["", "argon2id", "v=19", "m=..", "salt", "dk"]
	parts := strings.Split(phc, "$")
	if len(parts) != 6 {
		return false
	}
	var v int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &v); err != nil || v != 19 {
		return false
	}
	var m, t, p int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}
	if m <= 0 || t <= 0 || p <= 0 || p > 255 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(dkStored) == 0 {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}
