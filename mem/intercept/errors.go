package intercept

import "errors"

// ErrInstall indicates the installer rejected a hook.
var ErrInstall = errors.New("intercept: hook install failed")
