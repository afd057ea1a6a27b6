package service

import (
	"encoding/json"
	"strings"
)

// ClientMeta 请求方的客户端元信息
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// DeviceInfo 从 User-Agent 解析出的设备描述
type DeviceInfo struct {
	UserAgent  string `json:"user_agent"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

// ParseDeviceInfo 解析 User-Agent 为设备描述
func ParseDeviceInfo(userAgent string) DeviceInfo {
	info := DeviceInfo{
		UserAgent:  userAgent,
		Browser:    "unknown",
		OS:         "unknown",
		DeviceType: "desktop",
	}

	ua := strings.ToLower(userAgent)

	// 浏览器检测
	switch {
	case strings.Contains(ua, "edge"):
		info.Browser = "Edge"
	case strings.Contains(ua, "chrome"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "safari"):
		info.Browser = "Safari"
	}

	// 操作系统检测
	switch {
	case strings.Contains(ua, "windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		info.OS = "macOS"
	case strings.Contains(ua, "android"):
		info.OS = "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		info.OS = "iOS"
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	}

	// 设备类型检测
	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		info.DeviceType = "mobile"
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		info.DeviceType = "tablet"
	}

	return info
}

// JSON 序列化为存储用的 JSON 字符串
func (d DeviceInfo) JSON() string {
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(data)
}
