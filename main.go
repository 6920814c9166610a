/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-18 00:21:55
 * @LastEditTime: 2026-09-28 12:19:06
 * @LastEditors: 安知鱼
 */
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/cmd/server"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", config.DefaultConfigPath, "配置文件路径")
	flag.BoolVar(&showVersion, "version", false, "打印版本信息并退出")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetVersionString())
		return
	}

	app, cleanup, err := server.NewApp(configPath)
	if err != nil {
		log.Error().Err(err).Msg("应用初始化失败")
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
	defer cleanup()

	// 确保后台任务在程序退出时被停止
	defer app.Stop()

	if err := app.Run(); err != nil {
		log.Error().Err(err).Msg("应用运行失败")
	}
}
