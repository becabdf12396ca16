package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:     "auto-tube",
	Short:   "自动化短视频生产流水线",
	Long:    "一个定时采集素材、生成脚本、合成语音、渲染视频并在质量闸通过后自动发布的流水线服务",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig 读取配置文件和环境变量（如果设置）
func initConfig() {
	// 添加配置文件搜索路径
	viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
	viper.AddConfigPath(".")      // 当前目录
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")

	viper.AutomaticEnv() // 读取匹配的环境变量

	// 如果找到配置文件，读取它；找不到时使用默认配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Println("配置文件读取失败:", err)
			os.Exit(1)
		}
	}
}
