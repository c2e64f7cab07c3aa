package objdisk

import (
	"fmt"

	"github.com/graymeta/stow"

	//Load drivers
	"github.com/graymeta/stow/local" //local storage
	"github.com/graymeta/stow/s3"    //s3 storage
)

//The object store (stow.Location) kinds this package loads drivers for
// without callers having to import the driver package for each
const (
	KindLocalTest = local.Kind
	KindS3        = s3.Kind
)

//NewStore dials stow storage. See stow.Dial for more info
func NewStore(kind string, config stow.Config) (stow.Location, error) {
	return stow.Dial(kind, config)
}

//ValidateConfig verifies config parameters. See stow.Validate for more info
func ValidateConfig(kind string, config stow.Config) error {
	return stow.Validate(kind, config)
}

func describeContainer(container stow.Container) string {
	return fmt.Sprintf("remote container %q (%q)", container.ID(), container.Name())
}

func describeItem(item stow.Item) string {
	return fmt.Sprintf("remote object %q (%q)", item.ID(), item.Name())
}
