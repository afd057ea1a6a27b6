package model

// Principal 目录身份快照
// 登入时从目录服务取一次，之后不再同步
type Principal struct {
	Username    string `json:"username"`
	UserID      string `json:"user_id"` // 员工编号
	SamAccount  string `json:"sam_account"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Title       string `json:"title"`

	IsManager         bool          `json:"is_manager"` // 有直属下属即为主管
	SubordinatesCount int           `json:"subordinates_count"`
	Subordinates      []Subordinate `json:"subordinates,omitempty"`
	Manager           *ManagerInfo  `json:"manager_info,omitempty"`

	Permissions []string `json:"permissions"`
}

// ManagerInfo 主管信息（精选属性子集）
type ManagerInfo struct {
	SamAccount       string `json:"sam_account"`
	DisplayName      string `json:"display_name"`
	GivenName        string `json:"given_name"`
	Surname          string `json:"surname"`
	Email            string `json:"mail"`
	Department       string `json:"department"`
	Title            string `json:"title"`
	Phone            string `json:"phone"`
	Mobile           string `json:"mobile"`
	DN               string `json:"dn"`
	UpperManagerDN   string `json:"upper_manager_dn,omitempty"`
	UpperManagerName string `json:"upper_manager_name,omitempty"` // 只取姓名，不递归查询
}

// Subordinate 直属下属
type Subordinate struct {
	SamAccount  string `json:"sam_account"`
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name"`
	Surname     string `json:"surname"`
	Email       string `json:"mail"`
	Department  string `json:"department"`
	Title       string `json:"title"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	EmployeeID  string `json:"employee_id"`
	DN          string `json:"dn"`
}

// DirectoryUser 目录用户条目的完整属性
type DirectoryUser struct {
	SamAccount  string `json:"sam_account"`
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name"`
	Surname     string `json:"surname"`
	CN          string `json:"cn"`
	Email       string `json:"mail"`
	UPN         string `json:"upn"`
	Department  string `json:"department"`
	Title       string `json:"title"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	EmployeeID  string `json:"employee_id"`
	Company     string `json:"company"`
	DN          string `json:"dn"`
	ManagerDN   string `json:"manager_dn,omitempty"`
}
