// Copyright (C) 2019-2020, Xiongfa Li.
// @author xiongfa.li
// @version V1.0
// Description:

package appcontext

import (
	"io"
	"os"

	"github.com/xfali/xlog"
)

const (
	neveBanner = `
  .\'/.   .-----.-----.--.--.-----.
->- x -<- |     |  -__|  |  |  -__|
  '/.\'   |__|__|_____|\___/|_____|
=========  context  (v0.2.0.RELEASE)
`
)

// printBanner 输出banner，bannerPath读取失败时使用默认banner
func printBanner(bannerPath string) {
	writeBanner(selectWriter(), bannerPath)
}

func writeBanner(w io.Writer, bannerPath string) {
	output := []byte(neveBanner)
	if bannerPath != "" {
		if data, err := os.ReadFile(bannerPath); err == nil {
			output = data
		}
	}
	w.Write(output)
}

func selectWriter() io.Writer {
	for i := xlog.INFO; i <= xlog.DEBUG; i++ {
		w := xlog.GetOutputBySeverity(i)
		if w != nil {
			return w
		}
	}
	return os.Stdout
}
