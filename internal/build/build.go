package build

import "strings"

var (
	Version = "dev"
	AppName = "Weft"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
