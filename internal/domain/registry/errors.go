package registry

import "errors"

var ErrSnapshotFailed = errors.New("loading registry snapshot failed")
