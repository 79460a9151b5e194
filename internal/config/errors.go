package config

import "errors"

var errMissingTLS = errors.New("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
