package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code int         `json:"code"`           // 业务状态码
	Msg  string      `json:"msg"`            // 提示信息
	Data interface{} `json:"data,omitempty"` // 数据载荷
}

// 业务状态码定义
const (
	CodeSuccess = 200 // 成功

	CodeBadRequest      = 400 // 请求参数错误
	CodeUnauthorized    = 401 // 未认证
	CodeNotFound        = 404 // 资源不存在
	CodePayloadTooLarge = 413 // 负载过大

	CodeInternalError  = 500 // 服务器内部错误
	CodeBadGateway     = 502 // 上游服务异常
	CodeGatewayTimeout = 504 // 上游服务超时
)

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  "成功",
		Data: data,
	})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  msg,
		Data: data,
	})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Msg: msg})
}

// NotFound 资源不存在错误（404）
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: CodeNotFound, Msg: msg})
}

// PayloadTooLarge 负载过大错误（413）
func PayloadTooLarge(c *gin.Context, msg string) {
	c.JSON(http.StatusRequestEntityTooLarge, Response{Code: CodePayloadTooLarge, Msg: msg})
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: CodeInternalError, Msg: msg})
}

// BadGateway 上游服务异常（502）
func BadGateway(c *gin.Context, msg string) {
	c.JSON(http.StatusBadGateway, Response{Code: CodeBadGateway, Msg: msg})
}

// GatewayTimeout 上游服务超时（504）
func GatewayTimeout(c *gin.Context, msg string) {
	c.JSON(http.StatusGatewayTimeout, Response{Code: CodeGatewayTimeout, Msg: msg})
}
