// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package version

// Version is overridden on release with -ldflags "-X github.com/bwplotka/stripattrs/pkg/version.Version=<version>".
var Version = "v0.1.0-dev"
