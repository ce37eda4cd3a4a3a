package model

// User is the directory-service view of an account, as returned by the user
// fetcher collaborator. The password field carries whatever credential
// representation the directory stores; the gateway only compares it.
type User struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Project is a project configuration with its member and lead user ids.
type Project struct {
	Identifier string   `json:"identifier"`
	Name       string   `json:"name"`
	Members    []string `json:"users"`
	Leads      []string `json:"teamLeaders"`
}

// Organisation groups project configurations.
type Organisation struct {
	Identifier string   `json:"identifier"`
	Name       string   `json:"name"`
	ProjectIDs []string `json:"projectConfigurationIds"`
}
