package catalog

import "errors"

var ErrCatalogEmpty = errors.New("geographic catalog is empty")
