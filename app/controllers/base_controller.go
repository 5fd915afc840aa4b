package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/aihub/lotr-chat/internal/errors"
	"github.com/beego/beego/v2/server/web"
)

// BaseController provides helpers for consistent JSON responses.
// Exported fields are copied into the per-request controller by beego.
type BaseController struct {
	web.Controller
	Errors *apperrors.ErrorHandler
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONSuccessWithMessage 成功响应，附带提示信息
func (c *BaseController) JSONSuccessWithMessage(data interface{}, message string) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
		"message": message,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// HandleError 将错误转换为AppError并写出错误响应
func (c *BaseController) HandleError(err error) {
	var appErr *apperrors.AppError
	if c.Errors != nil {
		appErr = c.Errors.Handle(c.Ctx.Input.Method(), c.Ctx.Input.URL(), err)
	} else {
		appErr = apperrors.NewErrorTranslator().Translate(err)
	}

	body := map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	c.JSON(appErr.HTTPCode, body)
}

// decodeBody 解析JSON请求体；未开启 CopyRequestBody 时直接读取原始请求体
func (c *BaseController) decodeBody(v interface{}) error {
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 && c.Ctx.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Ctx.Request.Body)
		if err != nil {
			return apperrors.NewInvalidInputError("body", "unreadable request body").WithCause(err)
		}
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewInvalidInputError("body", "request body must be a JSON object").WithCause(err)
	}
	return nil
}
