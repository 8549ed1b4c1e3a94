package crashplugin

import (
	"context"
	"errors"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// PluginName is the name the capability is dispensed under
const PluginName = "crashhandler"

// Handshake is used to verify that the handler and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CRASHKEEPER_HANDLER",
	MagicCookieValue: "crashkeeper-native-capability-v1",
}

// PluginMap is the map of plugins the host can dispense
var PluginMap = map[string]plugin.Plugin{
	PluginName: &CapabilityPlugin{},
}

// CapabilityPlugin is the implementation of plugin.Plugin for RPC
type CapabilityPlugin struct {
	Impl Capability
}

func (p *CapabilityPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &CapabilityRPCServer{Impl: p.Impl}, nil
}

func (p *CapabilityPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &CapabilityRPCClient{client: c}, nil
}

// Serve runs impl as a handler process. It blocks until the host disconnects.
func Serve(impl Capability) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &CapabilityPlugin{Impl: impl},
		},
	})
}

// BoolResp carries a boolean result and an error message across RPC
type BoolResp struct {
	OK    bool
	Error string
}

// ErrorResp carries an error message across RPC
type ErrorResp struct {
	Error string
}

// HandleCrashArgs are the arguments for HandleCrash RPC call
type HandleCrashArgs struct {
	Args []string
}

// AddAttributeArgs are the arguments for AddAttribute RPC call
type AddAttributeArgs struct {
	Key   string
	Value string
}

// CapabilityRPCServer is the RPC server that CapabilityRPCClient talks to
type CapabilityRPCServer struct {
	Impl Capability
}

func (s *CapabilityRPCServer) HandleCrash(args *HandleCrashArgs, resp *BoolResp) error {
	ok, err := s.Impl.HandleCrash(context.Background(), args.Args)
	*resp = boolResp(ok, err)
	return nil
}

func (s *CapabilityRPCServer) InitializeCrashHandler(args *HandlerRequest, resp *BoolResp) error {
	ok, err := s.Impl.InitializeCrashHandler(context.Background(), *args)
	*resp = boolResp(ok, err)
	return nil
}

func (s *CapabilityRPCServer) InitializeSecondChanceHandler(args *SecondChanceRequest, resp *BoolResp) error {
	ok, err := s.Impl.InitializeSecondChanceHandler(context.Background(), *args)
	*resp = boolResp(ok, err)
	return nil
}

func (s *CapabilityRPCServer) AddAttribute(args *AddAttributeArgs, resp *ErrorResp) error {
	if err := s.Impl.AddAttribute(context.Background(), args.Key, args.Value); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

func boolResp(ok bool, err error) BoolResp {
	resp := BoolResp{OK: ok}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// CapabilityRPCClient is the RPC client that talks to CapabilityRPCServer
type CapabilityRPCClient struct {
	client *rpc.Client
}

func (c *CapabilityRPCClient) HandleCrash(ctx context.Context, args []string) (bool, error) {
	return c.callBool(ctx, "Plugin.HandleCrash", &HandleCrashArgs{Args: args})
}

func (c *CapabilityRPCClient) InitializeCrashHandler(ctx context.Context, req HandlerRequest) (bool, error) {
	return c.callBool(ctx, "Plugin.InitializeCrashHandler", &req)
}

func (c *CapabilityRPCClient) InitializeSecondChanceHandler(ctx context.Context, req SecondChanceRequest) (bool, error) {
	return c.callBool(ctx, "Plugin.InitializeSecondChanceHandler", &req)
}

func (c *CapabilityRPCClient) AddAttribute(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var resp ErrorResp
	if err := c.client.Call("Plugin.AddAttribute", &AddAttributeArgs{Key: key, Value: value}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

func (c *CapabilityRPCClient) callBool(ctx context.Context, method string, args interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var resp BoolResp
	if err := c.client.Call(method, args, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return resp.OK, errors.New(resp.Error)
	}
	return resp.OK, nil
}
