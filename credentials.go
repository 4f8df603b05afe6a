package escore

import "github.com/escore-go/escore/internal/wire"

// Credentials pairs a login and password, each 0..255 octets.
type Credentials struct {
	Login    string
	Password string
}

// NewCredentials builds a Credentials pair.
func NewCredentials(login, password string) Credentials {
	return Credentials{Login: login, Password: password}
}

func (c Credentials) toWire() *wire.Credentials {
	return &wire.Credentials{Login: []byte(c.Login), Password: []byte(c.Password)}
}
