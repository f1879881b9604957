package naming

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// Name of the dependency manifest inside the action archive.
	ManifestFileName = "requirements.txt"

	// Name of the isolated environment directory inside the workspace.
	VirtualenvDirName = "virtualenv"

	// Name of the storage bucket the built bundles are archived to.
	StorageBundleBucketName = "actionpack-bundles"

	// Namespace used when the request does not specify one.
	DefaultNamespace = "_"
)

// WorkspaceDirName returns the name of the workspace directory of an invocation.
func WorkspaceDirName(actionName string, unixSeconds int64, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("%s-%d", actionName, unixSeconds)
	}
	return fmt.Sprintf("%s-%d-%s", actionName, unixSeconds, suffix)
}

// SourceArchiveName returns the file name of the decoded action archive.
func SourceArchiveName(actionName string) string {
	return actionName + "-tmp.zip"
}

// BundleArchiveName returns the file name of the assembled action bundle.
func BundleArchiveName(actionName string) string {
	return actionName + ".zip"
}

// ActivateScriptPath returns the path of the activation stub inside the environment.
func ActivateScriptPath(envDir string) string {
	return filepath.Join(envDir, "bin", "activate_this.py")
}

// SitePackagesPattern returns the glob pattern of the site-packages directory inside the environment.
func SitePackagesPattern(envDir string) string {
	return filepath.Join(envDir, "lib", "python*", "site-packages")
}

// ActionPath returns the management API path of an action.
func ActionPath(namespace string, actionName string) string {
	return fmt.Sprintf("/api/v1/namespaces/%s/actions/%s", url.PathEscape(namespace), url.PathEscape(actionName))
}

// ActionUrl returns the full management API url of an action including the upsert query.
func ActionUrl(apiHost string, namespace string, actionName string) string {
	return NormalizeApiHost(apiHost) + ActionPath(namespace, actionName) + "?overwrite=true&blocking=true&result=true"
}

// NormalizeApiHost trims trailing slashes and prepends https:// if the host has no scheme.
func NormalizeApiHost(apiHost string) string {
	apiHost = strings.TrimRight(strings.TrimSpace(apiHost), "/")
	if !strings.Contains(apiHost, "://") {
		apiHost = "https://" + apiHost
	}
	return apiHost
}

// BundleStorageName returns the object name an action bundle is archived under.
func BundleStorageName(namespace string, actionName string, unixSeconds int64) string {
	return fmt.Sprintf("%s/%s/%d.zip", namespace, actionName, unixSeconds)
}
