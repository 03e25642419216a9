package loader

import (
	"stanclient/pkg/components"
)

type ComponentsLoader func() (components.Manifest, error)
