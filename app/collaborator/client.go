package collaborator

import (
	"fmt"

	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// statusError 将非 200 响应转换为错误。
// 4xx 视为无法通过重试恢复的致命错误，其余交给阶段重试策略。
func statusError(action string, resp *resty.Response) error {
	err := fmt.Errorf("%s失败，状态码: %d, 响应: %s", action, resp.StatusCode(), resp.String())
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return pipeline.Fatal(err)
	}
	return err
}
