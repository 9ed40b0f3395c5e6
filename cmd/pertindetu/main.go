// Command pertindetu はサービスマーケットプレイスのフロントエンド向けAPIサーバーを起動する。
//
// 使い方:
//
//	pertindetu [serve|worker|migrate [up|down]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/pertindetu/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
