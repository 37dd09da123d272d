// Copyright (C) 2019-2020, Xiongfa Li.
// @author xiongfa.li
// @version V1.0
// Description:

package neve

import (
	"context"
	"strings"
	"sync"

	"github.com/xfali/fig"
	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/neve-context/application"
	"github.com/xfali/neve-context/env"
	"github.com/xfali/neve-context/processor"
	"github.com/xfali/neve-context/reader"
	"github.com/xfali/neve-context/resource"
	"github.com/xfali/xlog"
)

const (
	// 配置路径，逗号分隔
	LocationsProperty = "neve.context.locations"
	// 定义格式：xml、script、scan
	FormatProperty = "neve.context.format"
	// 源码扫描时的包路径前缀
	BasePackageProperty = "neve.context.basePackage"
	// classpath:前缀对应的目录
	ResourceRootProperty = "neve.resource.root"

	ConfigPropertySourceName = "applicationConfig"
	DotEnvPropertySourceName = "dotenv"
)

type Application interface {
	// 注册组件，在Run之前调用，组件的定义先于配置文件中的定义注册
	RegisterBean(o interface{}) error

	Context() appcontext.ConfigurableContext

	// 刷新context并等待退出信号，退出后关闭context
	Run() error

	Close() error
}

type FileConfigApplication struct {
	logger      xlog.Logger
	config      fig.Properties
	environment *env.StandardEnvironment
	dotEnvFiles []string
	ctxOpts     []appcontext.Opt
	waiter      application.SignalWaiter

	lock       sync.Mutex
	components []interface{}
	ctx        *appcontext.RefreshableContext
}

type Opt func(*FileConfigApplication)

// NewFileConfigApplication 读取yaml配置文件创建应用。
// 属性优先级：.env文件 > yaml配置 > 系统环境变量
func NewFileConfigApplication(configPath string, opts ...Opt) (*FileConfigApplication, error) {
	prop, err := fig.LoadYamlFile(configPath)
	if err != nil {
		return nil, err
	}
	ret := &FileConfigApplication{
		logger: xlog.GetLogger(),
		config: prop,
	}
	for _, opt := range opts {
		opt(ret)
	}

	sources := []env.PropertySource{env.NewPropertiesSource(ConfigPropertySourceName, prop)}
	if len(ret.dotEnvFiles) > 0 {
		dotEnv, err := env.NewDotEnvSource(DotEnvPropertySourceName, ret.dotEnvFiles...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, dotEnv)
	}
	ret.environment = env.NewEnvironment(env.OptSetLogger(ret.logger), env.OptAddPropertySource(sources...))
	if ret.waiter == nil {
		ret.waiter = application.NewSignalWaiter(application.OptSetWaiterLogger(ret.logger))
	}
	return ret, nil
}

func OptSetLogger(logger xlog.Logger) Opt {
	return func(app *FileConfigApplication) {
		app.logger = logger
	}
}

// OptAddDotEnvFiles 读取.env文件作为属性源，后面的文件覆盖前面的
func OptAddDotEnvFiles(files ...string) Opt {
	return func(app *FileConfigApplication) {
		app.dotEnvFiles = append(app.dotEnvFiles, files...)
	}
}

func OptAddContextOpts(opts ...appcontext.Opt) Opt {
	return func(app *FileConfigApplication) {
		app.ctxOpts = append(app.ctxOpts, opts...)
	}
}

func OptSetSignalWaiter(waiter application.SignalWaiter) Opt {
	return func(app *FileConfigApplication) {
		app.waiter = waiter
	}
}

func (app *FileConfigApplication) Environment() env.Environment {
	return app.environment
}

func (app *FileConfigApplication) RegisterBean(o interface{}) error {
	app.lock.Lock()
	defer app.lock.Unlock()
	app.components = append(app.components, o)
	return nil
}

// Context 首次调用时按配置创建context
func (app *FileConfigApplication) Context() appcontext.ConfigurableContext {
	return app.context()
}

func (app *FileConfigApplication) context() *appcontext.RefreshableContext {
	app.lock.Lock()
	defer app.lock.Unlock()
	if app.ctx != nil {
		return app.ctx
	}
	format := reader.Format(app.environment.GetProperty(FormatProperty, string(reader.FormatXml)))
	opts := []appcontext.Opt{
		appcontext.OptSetLogger(app.logger),
		appcontext.OptSetEnvironment(app.environment),
		appcontext.OptSetFormat(format),
		appcontext.OptSetBasePackage(app.environment.GetProperty(BasePackageProperty, "")),
		appcontext.OptSetResourceLoader(resource.NewLoader(
			resource.OptSetClasspathDir(app.environment.GetProperty(ResourceRootProperty, "")))),
		appcontext.OptAddProcessors(processor.NewValueProcessor(app.config)),
		appcontext.OptAddComponents(app.components...),
		appcontext.OptShowBanner(""),
	}
	switch format {
	case reader.FormatScript:
		opts = append(opts, appcontext.OptSetDefaultLocations(appcontext.StandaloneConfigLocations(reader.ScriptSuffix)))
	case reader.FormatScan:
		opts = append(opts, appcontext.OptSetDefaultLocations(func(string) []string {
			return []string{resource.ClasspathPrefix + "**/*" + reader.SourceSuffix}
		}))
	}
	if locations := splitLocations(app.environment.GetProperty(LocationsProperty, "")); len(locations) > 0 {
		opts = append(opts, appcontext.OptSetConfigLocations(locations...))
	}
	app.ctx = appcontext.NewRefreshableContext(append(opts, app.ctxOpts...)...)
	return app.ctx
}

func splitLocations(s string) []string {
	var ret []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			ret = append(ret, v)
		}
	}
	return ret
}

func (app *FileConfigApplication) Run() error {
	ctx := app.context()
	if err := ctx.Refresh(); err != nil {
		if cerr := ctx.Close(); cerr != nil {
			app.logger.Errorln(cerr)
		}
		return err
	}
	return application.WaitAndClose(context.Background(), app.waiter, ctx.Close)
}

func (app *FileConfigApplication) Close() error {
	app.waiter.Stop()
	return nil
}
