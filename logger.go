// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import logger "github.com/d2r2/go-logger"

var lg = logger.NewPackageLogger("dewpoint", logger.InfoLevel)
