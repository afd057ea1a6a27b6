// Package ldapauth 目录服务认证
// 负责多格式绑定协商、用户条目检索以及主管/下属信息查询
package ldapauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/fulinvn/hr-auth/internal/model"
)

// 认证相关错误
var (
	ErrAuthFailed  = errors.New("目录认证失败")
	ErrUnavailable = errors.New("目录服务不可用")
)

// userAttributes 用户条目检索的属性列表
var userAttributes = []string{
	"sAMAccountName", "displayName", "givenName", "sn", "cn",
	"mail", "userPrincipalName", "department", "title",
	"telephoneNumber", "mobile", "manager", "employeeID",
	"company", "distinguishedName", "directReports",
}

// subordinateAttributes 下属条目检索的属性列表
var subordinateAttributes = []string{
	"sAMAccountName", "displayName", "givenName", "sn",
	"mail", "department", "title", "telephoneNumber",
	"mobile", "employeeID", "distinguishedName",
}

// managerAttributes 主管条目检索的属性列表
var managerAttributes = []string{
	"sAMAccountName", "displayName", "givenName", "sn",
	"mail", "department", "title", "telephoneNumber",
	"mobile", "manager",
}

// Config 目录认证器配置
type Config struct {
	Server           string        // 目录服务器地址
	Port             int           // 端口，默认 389
	Domain           string        // 网域名称
	Organization     string        // 组织域名，如 fulinvn.com
	BindTimeout      time.Duration // 绑定超时
	SearchTimeout    time.Duration // 单次搜索时间上限
	SubordinateLimit int           // 下属搜索结果上限
}

// Options 单次认证的选项
type Options struct {
	Server            string // 覆盖默认服务器
	Domain            string // 覆盖默认网域
	FetchManager      bool   // 是否查询主管信息
	FetchSubordinates bool   // 是否查询下属信息
}

// Timing 各阶段耗时统计
type Timing struct {
	Connect           time.Duration `json:"server_connection"`
	Bind              time.Duration `json:"authentication"`
	UserSearch        time.Duration `json:"user_search"`
	ManagerSearch     time.Duration `json:"manager_search"`
	SubordinateSearch time.Duration `json:"subordinates_search"`
	Total             time.Duration `json:"total"`
}

// Result 认证结果
type Result struct {
	User         *model.DirectoryUser
	Manager      *model.ManagerInfo
	Subordinates []model.Subordinate
	AuthFormat   string // 成功绑定所用的主体格式
	Server       string
	Domain       string
	Timing       Timing
}

// Authenticator 目录认证器接口
type Authenticator interface {
	// Authenticate 验证用户凭据并检索其组织信息
	Authenticate(ctx context.Context, username, password string, opts Options) (*Result, error)
}

type directoryAuthenticator struct {
	cfg    Config
	logger *zap.Logger
}

// New 创建目录认证器
func New(cfg Config, logger *zap.Logger) Authenticator {
	if cfg.Port == 0 {
		cfg.Port = 389
	}
	if cfg.BindTimeout == 0 {
		cfg.BindTimeout = 10 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 15 * time.Second
	}
	if cfg.SubordinateLimit == 0 {
		cfg.SubordinateLimit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &directoryAuthenticator{cfg: cfg, logger: logger}
}

// bindFormats 构造候选绑定主体，按顺序尝试
func bindFormats(username, domain, organization string) []string {
	return []string{
		fmt.Sprintf("%s@%s", username, domain),
		fmt.Sprintf("%s@%s", username, organization),
		fmt.Sprintf("%s\\%s", domain, username),
		username,
	}
}

// baseDNCandidates 构造候选搜索基准路径，组织路径最具体，根搜索放最后
func baseDNCandidates(domain, organization string) []string {
	return []string{
		"DC=" + strings.ReplaceAll(organization, ".", ",DC="),
		"DC=" + domain,
		"DC=" + domain + ",DC=local",
		"", // 根搜索
	}
}

// Authenticate 验证用户凭据并检索其组织信息
func (a *directoryAuthenticator) Authenticate(ctx context.Context, username, password string, opts Options) (*Result, error) {
	start := time.Now()

	server := opts.Server
	if server == "" {
		server = a.cfg.Server
	}
	domain := opts.Domain
	if domain == "" {
		domain = a.cfg.Domain
	}

	// 建立连接
	conn, err := a.dial(server)
	if err != nil {
		a.logger.Warn("目录服务器连接失败",
			zap.String("server", server),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	timing := Timing{Connect: time.Since(start)}

	// 依次尝试各绑定格式，任一成功即停止
	bindStart := time.Now()
	authFormat, err := a.bind(conn, username, password, domain)
	timing.Bind = time.Since(bindStart)
	if err != nil {
		timing.Total = time.Since(start)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bases := baseDNCandidates(domain, a.cfg.Organization)

	// 检索用户自身条目
	userStart := time.Now()
	user := a.searchUser(conn, username, bases)
	timing.UserSearch = time.Since(userStart)

	// 绑定成功但检索不到条目时降级为只含账号的最小结果
	if user == nil {
		a.logger.Warn("目录中未检索到用户条目", zap.String("username", username))
		user = &model.DirectoryUser{SamAccount: username}
	}

	result := &Result{
		User:       user,
		AuthFormat: authFormat,
		Server:     server,
		Domain:     domain,
	}

	// 主管与下属查询均为尽力而为，失败只降级为空结果
	if user != nil && opts.FetchManager && user.ManagerDN != "" {
		managerStart := time.Now()
		result.Manager = a.searchManager(conn, user.ManagerDN)
		timing.ManagerSearch = time.Since(managerStart)
	}

	if user != nil && opts.FetchSubordinates && user.DN != "" {
		subStart := time.Now()
		result.Subordinates = a.searchSubordinates(conn, user.DN, bases)
		timing.SubordinateSearch = time.Since(subStart)
	}

	timing.Total = time.Since(start)
	result.Timing = timing

	a.logger.Info("目录认证成功",
		zap.String("username", username),
		zap.String("auth_format", authFormat),
		zap.Duration("total", timing.Total),
		zap.Int("subordinates", len(result.Subordinates)))

	return result, nil
}

// dial 连接目录服务器，带超时
func (a *directoryAuthenticator) dial(server string) (*ldap.Conn, error) {
	url := fmt.Sprintf("ldap://%s:%d", server, a.cfg.Port)
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: a.cfg.BindTimeout}))
	if err != nil {
		return nil, err
	}
	// 绑定与搜索共用同一超时上限
	conn.SetTimeout(a.cfg.SearchTimeout)
	return conn, nil
}

// bind 依次尝试候选主体格式，返回成功的格式
// 单个格式绑定失败视为"尝试下一个"，全部失败才算认证失败
func (a *directoryAuthenticator) bind(conn *ldap.Conn, username, password, domain string) (string, error) {
	for _, format := range bindFormats(username, domain, a.cfg.Organization) {
		if err := conn.Bind(format, password); err != nil {
			continue
		}
		return format, nil
	}
	return "", ErrAuthFailed
}

// searchUser 在候选基准路径中检索用户条目，用第一个命中的路径
func (a *directoryAuthenticator) searchUser(conn *ldap.Conn, username string, bases []string) *model.DirectoryUser {
	filter := fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username))

	for _, base := range bases {
		req := ldap.NewSearchRequest(
			base,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			1,
			int(a.cfg.SearchTimeout.Seconds()),
			false,
			filter,
			userAttributes,
			nil,
		)

		res, err := conn.Search(req)
		if err != nil || len(res.Entries) == 0 {
			continue
		}

		entry := res.Entries[0]
		return &model.DirectoryUser{
			SamAccount:  entry.GetAttributeValue("sAMAccountName"),
			DisplayName: entry.GetAttributeValue("displayName"),
			GivenName:   entry.GetAttributeValue("givenName"),
			Surname:     entry.GetAttributeValue("sn"),
			CN:          entry.GetAttributeValue("cn"),
			Email:       entry.GetAttributeValue("mail"),
			UPN:         entry.GetAttributeValue("userPrincipalName"),
			Department:  entry.GetAttributeValue("department"),
			Title:       entry.GetAttributeValue("title"),
			Phone:       entry.GetAttributeValue("telephoneNumber"),
			Mobile:      entry.GetAttributeValue("mobile"),
			EmployeeID:  entry.GetAttributeValue("employeeID"),
			Company:     entry.GetAttributeValue("company"),
			DN:          entry.GetAttributeValue("distinguishedName"),
			ManagerDN:   entry.GetAttributeValue("manager"),
		}
	}

	return nil
}

// searchManager 直接按 DN 检索主管条目（BASE 范围，不递归）
// 主管若有上级，只提取其名称与 DN，不再继续向上查询
func (a *directoryAuthenticator) searchManager(conn *ldap.Conn, managerDN string) *model.ManagerInfo {
	req := ldap.NewSearchRequest(
		managerDN,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1,
		int(a.cfg.SearchTimeout.Seconds()),
		false,
		"(objectClass=user)",
		managerAttributes,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil || len(res.Entries) == 0 {
		return nil
	}

	entry := res.Entries[0]
	info := &model.ManagerInfo{
		SamAccount:  entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		GivenName:   entry.GetAttributeValue("givenName"),
		Surname:     entry.GetAttributeValue("sn"),
		Email:       entry.GetAttributeValue("mail"),
		Department:  entry.GetAttributeValue("department"),
		Title:       entry.GetAttributeValue("title"),
		Phone:       entry.GetAttributeValue("telephoneNumber"),
		Mobile:      entry.GetAttributeValue("mobile"),
		DN:          managerDN,
	}

	if upperDN := entry.GetAttributeValue("manager"); upperDN != "" {
		info.UpperManagerDN = upperDN
		info.UpperManagerName = commonNameFromDN(upperDN)
	}

	return info
}

// searchGiveUp 搜索出错后放弃剩余路径的耗时阈值，取单次搜索上限的三分之二
func (a *directoryAuthenticator) searchGiveUp() time.Duration {
	return a.cfg.SearchTimeout * 2 / 3
}

// searchSubordinates 检索以指定 DN 为主管的所有条目
// 根路径排到最后；具体路径快速返回空结果视为"确实没有下属"并停止
func (a *directoryAuthenticator) searchSubordinates(conn *ldap.Conn, managerDN string, bases []string) []model.Subordinate {
	filter := fmt.Sprintf("(manager=%s)", ldap.EscapeFilter(managerDN))

	ordered := make([]string, 0, len(bases))
	for _, base := range bases {
		if base != "" {
			ordered = append(ordered, base)
		}
	}
	ordered = append(ordered, "")

	var subordinates []model.Subordinate

	for _, base := range ordered {
		req := ldap.NewSearchRequest(
			base,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			a.cfg.SubordinateLimit,
			int(a.cfg.SearchTimeout.Seconds()),
			false,
			filter,
			subordinateAttributes,
			nil,
		)

		searchStart := time.Now()
		res, err := conn.Search(req)
		elapsed := time.Since(searchStart)

		if err != nil {
			// 超时直接放弃后续路径
			if ldap.IsErrorWithCode(err, ldap.LDAPResultTimeLimitExceeded) || elapsed > a.searchGiveUp() {
				break
			}
			continue
		}

		if len(res.Entries) > 0 {
			for _, entry := range res.Entries {
				subordinates = append(subordinates, model.Subordinate{
					SamAccount:  entry.GetAttributeValue("sAMAccountName"),
					DisplayName: entry.GetAttributeValue("displayName"),
					GivenName:   entry.GetAttributeValue("givenName"),
					Surname:     entry.GetAttributeValue("sn"),
					Email:       entry.GetAttributeValue("mail"),
					Department:  entry.GetAttributeValue("department"),
					Title:       entry.GetAttributeValue("title"),
					Phone:       entry.GetAttributeValue("telephoneNumber"),
					Mobile:      entry.GetAttributeValue("mobile"),
					EmployeeID:  entry.GetAttributeValue("employeeID"),
					DN:          entry.GetAttributeValue("distinguishedName"),
				})
			}
			break
		}

		// 具体路径在 2 秒内返回空结果，说明该用户没有下属
		if elapsed < 2*time.Second && base != "" {
			break
		}
	}

	return subordinates
}

// commonNameFromDN 从 DN 中提取第一个 CN 值
func commonNameFromDN(dn string) string {
	first := strings.SplitN(dn, ",", 2)[0]
	return strings.TrimPrefix(first, "CN=")
}
