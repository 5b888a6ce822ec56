// Package builtin registers the built-in executors. Import it for side
// effects:
//
//	import _ "github.com/weft-org/weft/internal/runtime/builtin"
package builtin

import (
	_ "github.com/weft-org/weft/internal/runtime/builtin/archive"
	_ "github.com/weft-org/weft/internal/runtime/builtin/command"
	_ "github.com/weft-org/weft/internal/runtime/builtin/docker"
	_ "github.com/weft-org/weft/internal/runtime/builtin/http"
	_ "github.com/weft-org/weft/internal/runtime/builtin/jq"
	_ "github.com/weft-org/weft/internal/runtime/builtin/s3"
	_ "github.com/weft-org/weft/internal/runtime/builtin/sql"
	_ "github.com/weft-org/weft/internal/runtime/builtin/ssh"
)
