package filestorage

import "errors"

// ErrObjectNotFound lo devuelven ReadObject en GCS y S3 cuando el objeto no
// existe, para que los llamadores no dependan del error del SDK concreto.
var ErrObjectNotFound = errors.New("object not found")
