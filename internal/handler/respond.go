package handler

import "github.com/gin-gonic/gin"

// The API keeps the {success, message, data} envelope its storefront
// clients already consume.

func ok(c *gin.Context, code int, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "message": message})
}
