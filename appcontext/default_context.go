/*
 * Copyright 2022 Xiongfa Li.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package appcontext

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/env"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/injector"
	"github.com/xfali/neve-context/metadata"
	"github.com/xfali/neve-context/processor"
	"github.com/xfali/neve-context/reader"
	"github.com/xfali/neve-context/resource"
	"github.com/xfali/xlog"
)

const (
	// 应用名称
	ApplicationNameProperty = "neve.application.name"
	// 是否允许同名定义覆盖，默认true
	OverridingProperty = "neve.definition.overriding"

	DefaultApplicationName = "Neve Application"

	EnvironmentBeanName        = "environment"
	ApplicationContextBeanName = "applicationContext"
)

type State int32

const (
	StateCreated State = iota
	StateRefreshing
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRefreshing:
		return "Refreshing"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

type Opt func(*RefreshableContext)

// RefreshableContext 可重复刷新的context。
// 每次刷新销毁上一代bean工厂，重新读取定义并创建单例；刷新失败不回滚，下一次刷新从空工厂开始。
// 并发调用Refresh时后调用者阻塞，直到前一次刷新结束后执行自己的完整刷新。
type RefreshableContext struct {
	logger      xlog.Logger
	id          string
	displayName string
	appName     string

	namespace        string
	configLocations  []string
	defaultLocations func(namespace string) []string
	format           reader.Format
	basePackage      string

	environment     env.Environment
	loader          resource.PatternResolver
	allowOverriding *bool
	annotations     *metadata.AnnotationRegistry
	types           *injector.TypeRegistry
	instantiator    bean.Instantiator
	postProcessors  []bean.PostProcessor
	processors      []processor.Processor
	initSources     func(e env.Environment) error
	components      []interface{}

	eventProc  ApplicationEventProcessor
	bannerPath string
	showBanner bool

	refreshLock sync.Mutex

	lock        sync.RWMutex
	factory     *bean.Factory
	startupTime time.Time

	state      int32
	generation uint64
}

func NewRefreshableContext(opts ...Opt) *RefreshableContext {
	ret := &RefreshableContext{
		logger:           xlog.GetLogger(),
		id:               uuid.NewString(),
		format:           reader.FormatXml,
		defaultLocations: StandaloneConfigLocations(reader.XmlSuffix),
		state:            int32(StateCreated),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.environment == nil {
		ret.environment = env.NewEnvironment(env.OptSetLogger(ret.logger))
	}
	if ret.loader == nil {
		ret.loader = resource.NewLoader()
	}
	if ret.annotations == nil {
		ret.annotations = metadata.NewAnnotationRegistry()
	}
	if ret.types == nil {
		ret.types = injector.NewTypeRegistry()
	}
	if ret.instantiator == nil {
		ret.instantiator = injector.New(ret.types, injector.OptSetLogger(ret.logger))
	}
	if ret.eventProc == nil {
		ret.eventProc = NewEventProcessor(OptSetEventProcessorLogger(ret.logger))
	}
	if ret.displayName == "" {
		ret.displayName = fmt.Sprintf("RefreshableContext-%s", ret.id)
	}
	if err := ret.eventProc.Start(); err != nil {
		ret.logger.Errorln(err)
	}
	return ret
}

func OptSetLogger(logger xlog.Logger) Opt {
	return func(ctx *RefreshableContext) {
		ctx.logger = logger
	}
}

func OptSetDisplayName(name string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.displayName = name
	}
}

// OptSetApplicationName 设置应用名称，未设置时读取环境属性neve.application.name
func OptSetApplicationName(name string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.appName = name
	}
}

func OptSetConfigLocations(locations ...string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.configLocations = append([]string(nil), locations...)
	}
}

func OptSetNamespace(namespace string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.namespace = namespace
	}
}

// OptSetDefaultLocations 设置未指定配置路径时按命名空间计算默认路径的方法
func OptSetDefaultLocations(f func(namespace string) []string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.defaultLocations = f
	}
}

func OptSetFormat(format reader.Format) Opt {
	return func(ctx *RefreshableContext) {
		ctx.format = format
	}
}

// OptSetBasePackage 源码扫描时资源路径对应的包路径前缀
func OptSetBasePackage(pkg string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.basePackage = pkg
	}
}

func OptSetEnvironment(e env.Environment) Opt {
	return func(ctx *RefreshableContext) {
		ctx.environment = e
	}
}

func OptSetResourceLoader(loader resource.PatternResolver) Opt {
	return func(ctx *RefreshableContext) {
		ctx.loader = loader
	}
}

func OptAllowOverriding(flag bool) Opt {
	return func(ctx *RefreshableContext) {
		ctx.allowOverriding = &flag
	}
}

func OptSetAnnotationRegistry(registry *metadata.AnnotationRegistry) Opt {
	return func(ctx *RefreshableContext) {
		ctx.annotations = registry
	}
}

func OptSetTypeRegistry(types *injector.TypeRegistry) Opt {
	return func(ctx *RefreshableContext) {
		ctx.types = types
	}
}

func OptSetInstantiator(instantiator bean.Instantiator) Opt {
	return func(ctx *RefreshableContext) {
		ctx.instantiator = instantiator
	}
}

// OptAddPostProcessors 添加bean处理器，每次刷新时加入新的工厂
func OptAddPostProcessors(processors ...bean.PostProcessor) Opt {
	return func(ctx *RefreshableContext) {
		ctx.postProcessors = append(ctx.postProcessors, processors...)
	}
}

// OptAddProcessors 添加工厂处理器，在定义读取完成、单例创建之前执行
func OptAddProcessors(processors ...processor.Processor) Opt {
	return func(ctx *RefreshableContext) {
		ctx.processors = append(ctx.processors, processors...)
	}
}

// OptSetPropertySourceInitializer 每次刷新开始时调用，用于向环境添加属性源
func OptSetPropertySourceInitializer(f func(e env.Environment) error) Opt {
	return func(ctx *RefreshableContext) {
		ctx.initSources = f
	}
}

// OptAddComponents 通过反射注册的组件，先于配置路径中的定义注册
func OptAddComponents(objects ...interface{}) Opt {
	return func(ctx *RefreshableContext) {
		ctx.components = append(ctx.components, objects...)
	}
}

func OptSetEventProcessor(proc ApplicationEventProcessor) Opt {
	return func(ctx *RefreshableContext) {
		ctx.eventProc = proc
	}
}

func OptDisableEvent() Opt {
	return func(ctx *RefreshableContext) {
		ctx.eventProc = NewDisableEventProcessor()
	}
}

// OptShowBanner 首次刷新时打印banner，path为空时使用默认banner
func OptShowBanner(path string) Opt {
	return func(ctx *RefreshableContext) {
		ctx.showBanner = true
		ctx.bannerPath = path
	}
}

func (ctx *RefreshableContext) ID() string {
	return ctx.id
}

func (ctx *RefreshableContext) DisplayName() string {
	return ctx.displayName
}

func (ctx *RefreshableContext) GetApplicationName() string {
	if ctx.appName != "" {
		return ctx.appName
	}
	return ctx.environment.GetProperty(ApplicationNameProperty, DefaultApplicationName)
}

func (ctx *RefreshableContext) StartupTime() time.Time {
	ctx.lock.RLock()
	defer ctx.lock.RUnlock()
	return ctx.startupTime
}

func (ctx *RefreshableContext) Generation() uint64 {
	return atomic.LoadUint64(&ctx.generation)
}

func (ctx *RefreshableContext) State() State {
	return State(atomic.LoadInt32(&ctx.state))
}

func (ctx *RefreshableContext) setState(s State) {
	atomic.StoreInt32(&ctx.state, int32(s))
}

func (ctx *RefreshableContext) Environment() env.Environment {
	return ctx.environment
}

func (ctx *RefreshableContext) ResourceLoader() resource.PatternResolver {
	return ctx.loader
}

func (ctx *RefreshableContext) TypeRegistry() *injector.TypeRegistry {
	return ctx.types
}

func (ctx *RefreshableContext) SetConfigLocations(locations ...string) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	ctx.configLocations = append([]string(nil), locations...)
}

func (ctx *RefreshableContext) Load(locations ...string) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	ctx.configLocations = append(ctx.configLocations, locations...)
}

func (ctx *RefreshableContext) ConfigLocations() []string {
	ctx.lock.RLock()
	defer ctx.lock.RUnlock()
	if len(ctx.configLocations) > 0 {
		return append([]string(nil), ctx.configLocations...)
	}
	if ctx.defaultLocations == nil {
		return nil
	}
	return ctx.defaultLocations(ctx.namespace)
}

func (ctx *RefreshableContext) SetNamespace(namespace string) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	ctx.namespace = namespace
}

func (ctx *RefreshableContext) Namespace() string {
	ctx.lock.RLock()
	defer ctx.lock.RUnlock()
	return ctx.namespace
}

func (ctx *RefreshableContext) overriding() bool {
	if ctx.allowOverriding != nil {
		return *ctx.allowOverriding
	}
	v, err := strconv.ParseBool(ctx.environment.GetProperty(OverridingProperty, "true"))
	if err != nil {
		ctx.logger.Warnln("invalid", OverridingProperty, "value, overriding enabled:", err)
		return true
	}
	return v
}

// Refresh 销毁当前工厂，创建新工厂并读取定义、执行工厂处理器、创建非延迟单例，成功后发送ContextRefreshedEvent
func (ctx *RefreshableContext) Refresh() error {
	ctx.refreshLock.Lock()
	defer ctx.refreshLock.Unlock()

	if ctx.State() == StateClosed {
		return errors.Lifecycle("context %s has been closed", ctx.displayName)
	}
	ctx.setState(StateRefreshing)
	gen := atomic.AddUint64(&ctx.generation, 1)
	if gen == 1 && ctx.showBanner {
		printBanner(ctx.bannerPath)
	}
	ctx.logger.Infof("Refreshing %s, generation %d\n", ctx.displayName, gen)

	ctx.destroyFactory()

	factory, err := ctx.buildFactory()
	if err != nil {
		if factory != nil {
			if derr := factory.DestroySingletons(); derr != nil {
				ctx.logger.Errorln(derr)
			}
		}
		ctx.setState(StateCreated)
		ctx.logger.Errorf("Refresh %s failed: %v\n", ctx.displayName, err)
		return withGeneration(err, gen)
	}

	ctx.lock.Lock()
	ctx.factory = factory
	ctx.startupTime = time.Now()
	ctx.lock.Unlock()
	ctx.setState(StateActive)

	ctx.eventProc.ResetBeanListeners(ctx.singletons(factory)...)
	ctx.logger.Infof("%s refreshed, %d bean definitions\n", ctx.displayName, factory.Registry().DefinitionCount())
	if err := ctx.eventProc.NotifyEvent(NewContextRefreshedEvent(ctx)); err != nil {
		ctx.logger.Errorln(err)
	}
	return nil
}

func withGeneration(err error, gen uint64) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e == err {
			return e.WithGeneration(gen)
		}
	}
	ret := errors.Lifecycle("context refresh failed")
	ret.Cause = err
	ret.Generation = gen
	return ret
}

// destroyFactory 先将工厂置空再销毁，销毁期间GetBean返回Lifecycle错误
func (ctx *RefreshableContext) destroyFactory() {
	ctx.lock.Lock()
	factory := ctx.factory
	ctx.factory = nil
	ctx.lock.Unlock()

	if factory == nil {
		return
	}
	ctx.eventProc.ResetBeanListeners()
	if err := factory.DestroySingletons(); err != nil {
		ctx.logger.Errorln(err)
	}
}

func (ctx *RefreshableContext) buildFactory() (*bean.Factory, error) {
	if ctx.initSources != nil {
		if err := ctx.initSources(ctx.environment); err != nil {
			return nil, err
		}
	}

	registry := bean.NewRegistry(bean.OptAllowOverriding(ctx.overriding()), bean.OptSetRegistryLogger(ctx.logger))
	if err := ctx.loadDefinitions(registry); err != nil {
		return nil, err
	}

	factory := bean.NewFactory(
		bean.OptSetRegistry(registry),
		bean.OptSetInstantiator(ctx.instantiator),
		bean.OptSetFactoryLogger(ctx.logger))
	if err := factory.RegisterSingleton(EnvironmentBeanName, ctx.environment); err != nil {
		return factory, err
	}
	if err := factory.RegisterSingleton(ApplicationContextBeanName, ctx); err != nil {
		return factory, err
	}
	factory.AddPostProcessor(&awareProcessor{ctx: ctx})
	factory.AddPostProcessor(ctx.postProcessors...)

	if err := processor.Invoke(factory, ctx.processors...); err != nil {
		return factory, err
	}
	registry.Freeze()

	if err := factory.PreInstantiateSingletons(); err != nil {
		return factory, err
	}
	return factory, nil
}

func (ctx *RefreshableContext) readerOpts() []reader.Opt {
	return []reader.Opt{
		reader.OptSetLogger(ctx.logger),
		reader.OptSetLoader(ctx.loader),
		reader.OptSetEnvironment(ctx.environment),
		reader.OptSetAnnotationRegistry(ctx.annotations),
		reader.OptSetTypeRegistry(ctx.types),
		reader.OptSetBasePackage(ctx.basePackage),
	}
}

func (ctx *RefreshableContext) loadDefinitions(registry *bean.DefaultRegistry) error {
	if len(ctx.components) > 0 {
		if _, err := reader.NewAnnotatedReader(registry, ctx.readerOpts()...).Register(ctx.components...); err != nil {
			return err
		}
	}

	locations := ctx.ConfigLocations()
	if len(locations) == 0 {
		return nil
	}
	r, err := reader.NewReader(ctx.format, registry, ctx.readerOpts()...)
	if err != nil {
		return err
	}
	_, err = r.LoadLocations(locations...)
	return err
}

func (ctx *RefreshableContext) singletons(factory *bean.Factory) []interface{} {
	names := factory.SingletonNames()
	ret := make([]interface{}, 0, len(names))
	for _, name := range names {
		if name == ApplicationContextBeanName {
			continue
		}
		if o, err := factory.GetBean(name); err == nil {
			ret = append(ret, o)
		}
	}
	return ret
}

func (ctx *RefreshableContext) activeFactory() (*bean.Factory, error) {
	ctx.lock.RLock()
	defer ctx.lock.RUnlock()
	if ctx.factory == nil || ctx.State() != StateActive {
		return nil, errors.Lifecycle("context %s is not active, current state: %s", ctx.displayName, ctx.State())
	}
	return ctx.factory, nil
}

// Factory 当前代的bean工厂，context未处于Active状态时返回错误
func (ctx *RefreshableContext) Factory() (*bean.Factory, error) {
	return ctx.activeFactory()
}

func (ctx *RefreshableContext) GetBean(name string) (interface{}, error) {
	return ctx.GetBeanContext(context.Background(), name)
}

func (ctx *RefreshableContext) GetBeanContext(c context.Context, name string) (interface{}, error) {
	factory, err := ctx.activeFactory()
	if err != nil {
		return nil, err
	}
	o, err := factory.GetBeanContext(c, name)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) && e == err {
			return nil, e.WithGeneration(ctx.Generation())
		}
	}
	return o, err
}

func (ctx *RefreshableContext) ContainsBean(name string) bool {
	factory, err := ctx.activeFactory()
	if err != nil {
		return false
	}
	return factory.ContainsBean(name)
}

func (ctx *RefreshableContext) BeanNames() []string {
	factory, err := ctx.activeFactory()
	if err != nil {
		return nil
	}
	return factory.Registry().DefinitionNames()
}

func (ctx *RefreshableContext) NamesForType(className string) []string {
	factory, err := ctx.activeFactory()
	if err != nil {
		return nil
	}
	return factory.NamesForType(className)
}

func (ctx *RefreshableContext) PublishEvent(e ApplicationEvent) error {
	return ctx.eventProc.PublishEvent(e)
}

func (ctx *RefreshableContext) PostEvent(c context.Context, e ApplicationEvent) error {
	return ctx.eventProc.PostEvent(c, e)
}

func (ctx *RefreshableContext) AddListeners(listeners ...interface{}) {
	ctx.eventProc.AddListeners(listeners...)
}

// Close 发送ContextClosedEvent后销毁单例，重复调用无副作用
func (ctx *RefreshableContext) Close() error {
	ctx.refreshLock.Lock()
	defer ctx.refreshLock.Unlock()

	if ctx.State() == StateClosed {
		return nil
	}
	if ctx.State() == StateActive {
		if err := ctx.eventProc.NotifyEvent(NewContextClosedEvent(ctx)); err != nil {
			ctx.logger.Errorln(err)
		}
	}
	ctx.destroyFactory()
	ctx.setState(StateClosed)
	ctx.logger.Infof("%s closed\n", ctx.displayName)
	return ctx.eventProc.Close()
}

// StandaloneConfigLocations 独立运行时的默认路径：
// 根context使用classpath:config/application-context<suffix>，命名空间ns使用classpath:config/<ns><suffix>
func StandaloneConfigLocations(suffix string) func(namespace string) []string {
	return DefaultConfigLocations(resource.ClasspathPrefix+"config/", "application-context", suffix)
}

// DefaultConfigLocations 按prefix + (namespace或root) + suffix计算默认配置路径
func DefaultConfigLocations(prefix, root, suffix string) func(namespace string) []string {
	return func(namespace string) []string {
		if namespace == "" {
			return []string{prefix + root + suffix}
		}
		return []string{prefix + namespace + suffix}
	}
}

// NewXmlApplicationContext 创建读取XML定义的context并立即刷新
func NewXmlApplicationContext(locations ...string) (*RefreshableContext, error) {
	return newApplicationContext(reader.FormatXml, reader.XmlSuffix, locations)
}

// NewScriptApplicationContext 创建读取脚本定义的context并立即刷新，.xml后缀的路径仍按XML读取
func NewScriptApplicationContext(locations ...string) (*RefreshableContext, error) {
	return newApplicationContext(reader.FormatScript, reader.ScriptSuffix, locations)
}

func newApplicationContext(format reader.Format, suffix string, locations []string) (*RefreshableContext, error) {
	ctx := NewRefreshableContext(
		OptSetFormat(format),
		OptSetDefaultLocations(StandaloneConfigLocations(suffix)),
		OptSetConfigLocations(locations...))
	if err := ctx.Refresh(); err != nil {
		if cerr := ctx.Close(); cerr != nil {
			ctx.logger.Errorln(cerr)
		}
		return nil, err
	}
	return ctx, nil
}

var _ ConfigurableContext = (*RefreshableContext)(nil)
