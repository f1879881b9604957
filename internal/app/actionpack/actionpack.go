package actionpack

import (
	"context"
	"os"
	"time"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/bundler"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/installer"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/publisher"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/request"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/unpacker"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/defers"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/metrics"
	"github.com/dennishilgert/actionpack/pkg/storage"
)

var log = logger.NewLogger("actionpack")

const (
	stageUnpack   = "unpack"
	stageInstall  = "install"
	stageAssemble = "assemble"
	stagePublish  = "publish"
	stageArchive  = "archive"

	outcomeSuccess = "success"
)

// Result is the outcome of a build invocation. Exactly one of the fields is set.
type Result struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

type Options struct {
	AllowedKinds   []string
	DefaultKind    string
	Workspace      workspace.Options
	PruneTests     bool
	PublishTimeout time.Duration
	SkipTlsVerify  bool

	// StorageBucket is the bucket the bundles are archived to when a storage service is set.
	StorageBucket string
}

type Service interface {
	// Build runs the whole pipeline for the request and publishes the bundle with the given credentials.
	Build(ctx context.Context, req request.Request, credentials publisher.Credentials) Result
}

type service struct {
	validator      request.Validator
	defaultKind    string
	preparer       workspace.Preparer
	unpacker       unpacker.Unpacker
	installer      installer.Installer
	bundler        bundler.Bundler
	publishTimeout time.Duration
	skipTlsVerify  bool
	storageService storage.StorageService
	storageBucket  string
	metrics        metrics.BuildMetrics
	clock          func() time.Time
}

// NewService creates a new Service. The storage service and metrics are optional.
func NewService(inst installer.Installer, storageService storage.StorageService, buildMetrics metrics.BuildMetrics, opts Options) Service {
	if buildMetrics == nil {
		buildMetrics = metrics.Noop{}
	}
	clock := opts.Workspace.Clock
	if clock == nil {
		clock = time.Now
	}
	storageBucket := opts.StorageBucket
	if storageBucket == "" {
		storageBucket = naming.StorageBundleBucketName
	}
	return &service{
		validator:      request.NewValidator(opts.AllowedKinds),
		defaultKind:    opts.DefaultKind,
		preparer:       workspace.NewPreparer(opts.Workspace),
		unpacker:       unpacker.NewUnpacker(),
		installer:      inst,
		bundler:        bundler.NewBundler(bundler.Options{PruneTests: opts.PruneTests}),
		publishTimeout: opts.PublishTimeout,
		skipTlsVerify:  opts.SkipTlsVerify,
		storageService: storageService,
		storageBucket:  storageBucket,
		metrics:        buildMetrics,
		clock:          clock,
	}
}

func (s *service) Build(ctx context.Context, req request.Request, credentials publisher.Credentials) Result {
	message, err := s.build(ctx, req, credentials)
	if err != nil {
		kind := faults.KindOf(err)
		if kind == "" {
			kind = "internal"
		}
		s.metrics.IncBuildsCompleted(string(kind))
		log.Errorf("build of action %s failed: %v", req.ActionName, err)
		return Result{Error: faults.Message(err)}
	}
	s.metrics.IncBuildsCompleted(outcomeSuccess)
	return Result{Result: message}
}

func (s *service) build(ctx context.Context, req request.Request, credentials publisher.Credentials) (string, error) {
	if err := s.validator.Validate(&req); err != nil {
		return "", err
	}
	request.ApplyDefaults(&req, s.defaultKind)

	pub, err := publisher.NewPublisher(publisher.Options{
		Credentials:   credentials,
		Timeout:       s.publishTimeout,
		SkipTlsVerify: s.skipTlsVerify,
	})
	if err != nil {
		return "", err
	}

	ws, err := s.preparer.Acquire(req.ActionName)
	if err != nil {
		return "", err
	}
	cleanup := defers.NewDefers()
	defer cleanup.CallAll()
	cleanup.Add(ws.Release)

	var payload *unpacker.Payload
	err = s.stage(stageUnpack, func() error {
		payload, err = s.unpacker.Unpack(ws, req.ActionName, req.ActionData)
		return err
	})
	if err != nil {
		return "", err
	}

	var env *installer.Environment
	err = s.stage(stageInstall, func() error {
		env, err = s.installer.Install(ctx, ws, payload.ManifestPath)
		return err
	})
	if err != nil {
		return "", err
	}

	var bundlePath string
	err = s.stage(stageAssemble, func() error {
		bundlePath, err = s.bundler.Assemble(bundler.Input{
			Workspace:    ws,
			ActionName:   req.ActionName,
			Members:      payload.Members,
			ManifestPath: payload.ManifestPath,
			Environment:  env,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(bundlePath); err == nil {
		s.metrics.ObserveBundleSize(info.Size())
	}

	var response *publisher.Response
	err = s.stage(stagePublish, func() error {
		response, err = pub.Publish(ctx, publisher.Action{
			Namespace:  req.ActionNamespace,
			Name:       req.ActionName,
			Kind:       req.ActionKind,
			Main:       req.ActionMain,
			BundlePath: bundlePath,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	s.archive(ctx, req, bundlePath)
	log.Info(response.Message)
	return response.Message, nil
}

// stage runs a pipeline stage and records its duration.
func (s *service) stage(name string, fn func() error) error {
	start := time.Now()
	log.Debugf("starting stage %s", name)
	err := fn()
	s.metrics.ObserveStageDuration(name, time.Since(start).Seconds())
	return err
}

// archive uploads the published bundle to the storage. Failures are logged only.
func (s *service) archive(ctx context.Context, req request.Request, bundlePath string) {
	if s.storageService == nil {
		return
	}
	objectName := naming.BundleStorageName(req.ActionNamespace, req.ActionName, s.clock().Unix())
	s.stage(stageArchive, func() error {
		if err := s.storageService.EnsureBucket(ctx, s.storageBucket); err != nil {
			log.Warnf("failed to archive bundle of action %s: %v", req.ActionName, err)
			return err
		}
		if _, err := s.storageService.UploadObject(ctx, s.storageBucket, objectName, bundlePath); err != nil {
			log.Warnf("failed to archive bundle of action %s: %v", req.ActionName, err)
			return err
		}
		log.Infof("archived bundle of action %s as %s/%s", req.ActionName, s.storageBucket, objectName)
		return nil
	})
}
