// Package main はimgtagバイナリのエントリーポイント。
package main

import (
	"context"
	"os"

	"github.com/hitoshi/imgtag/internal/app"
)

func main() {
	os.Exit(app.Execute(context.Background(), os.Stdout, os.Stderr, os.Args[1:]))
}
