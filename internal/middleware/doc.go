// Package middleware 提供 HTTP 請求處理的中間件。
//
// 目前包含與會者 token 驗證、房間範圍檢查以及請求日誌。
package middleware
