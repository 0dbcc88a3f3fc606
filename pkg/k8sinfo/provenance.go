// Package k8sinfo is a thin provenance-stamping helper, not an
// orchestration layer — GPU instances are upstream-provider resources, not
// Kubernetes resources, so this package's footprint is deliberately small:
// an in-cluster client construction plus a couple of read-only calls,
// never a controller or informer.
package k8sinfo

import (
	"context"
	"fmt"
	"os"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/config"
	"novita-orchestrator/pkg/logger"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/yaml"
)

// Provenance identifies the cluster/namespace/pod a control plane process
// is running in, stamped onto outgoing webhook payloads and log lines.
type Provenance struct {
	Cluster   string
	Namespace string
	Pod       string
}

// Load builds a Provenance from the in-cluster API server and the
// downward-API-mounted pod metadata file. It never returns an error —
// provenance stamping is decoration, never a startup requirement: not
// running in Kubernetes, a failed API call, or an unreadable or malformed
// downward-API file is logged as a warning and the affected fields are
// left empty (namespace and pod then fall back to POD_NAMESPACE/POD_NAME).
func Load(ctx context.Context, cfg config.K8sConfig) (*Provenance, error) {
	p := &Provenance{}
	if !cfg.Enabled {
		return p, nil
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		logger.Warnf("k8sinfo: not running in-cluster, provenance stamping disabled: %v", err)
		return p, nil
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		logger.Warnf("k8sinfo: failed to build clientset: %v", err)
		return p, nil
	}
	if version, err := clientset.Discovery().ServerVersion(); err != nil {
		logger.Warnf("k8sinfo: failed to read server version: %v", err)
	} else {
		p.Cluster = version.GitVersion
	}

	if cfg.DownwardAPIPath != "" {
		meta, err := readPodMetadata(cfg.DownwardAPIPath)
		if err != nil {
			logger.Warnf("k8sinfo: failed to read downward API metadata at %s: %v", cfg.DownwardAPIPath, err)
		} else {
			p.Namespace = meta.Namespace
			p.Pod = meta.Name
		}
	}
	if p.Pod == "" {
		p.Pod = os.Getenv("POD_NAME")
	}
	if p.Namespace == "" {
		p.Namespace = os.Getenv("POD_NAMESPACE")
	}

	return p, nil
}

// readPodMetadata decodes the downward-API-mounted file into the same
// typed ObjectMeta k8s.io/api itself uses, rather than a bespoke struct.
func readPodMetadata(path string) (*corev1.ObjectMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta corev1.ObjectMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode pod metadata: %w", err)
	}
	return &meta, nil
}

// ToModel converts to the wire-shaped Provenance embedded in webhook
// payloads, so pkg/k8sinfo stays the only package that imports client-go.
func (p *Provenance) ToModel() *model.Provenance {
	if p == nil || (p.Cluster == "" && p.Namespace == "" && p.Pod == "") {
		return nil
	}
	return &model.Provenance{Cluster: p.Cluster, Namespace: p.Namespace, Pod: p.Pod}
}
