// Package main 启动应用程序
package main

import "github.com/clintagossett/artvault/pkg/cmd"

//	@title			ArtVault API
//	@version		1.0
//	@description	ArtVault 是一个多租户制品版本与块存储解析服务，提供制品管理、版本账本、文件注册表与公开分享解析能力。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
