// Package api 設定 HTTP 路由。
//
// handlers 子套件將 HTTP 請求轉為服務層呼叫，並把服務層的錯誤轉為對應的狀態碼。
package api
