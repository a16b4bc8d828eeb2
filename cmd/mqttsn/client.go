package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/vitalvas/mqttsn"
	"github.com/vitalvas/mqttsn/extensions/config"
	"github.com/vitalvas/mqttsn/extensions/router"
)

func newClientCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "client",
		Short: "Run an MQTT-SN client",
		Long: `Run an MQTT-SN client.

The client finds a gateway (or uses the configured one), registers the
fixture topics and publishes random fixture messages. Configured
subscriptions are made on every successful connect.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(flags)
			if err != nil {
				return err
			}

			opts, err := rt.cfg.ClientOptions(
				mqttsn.WithTransport(rt.transport),
				mqttsn.WithLogger(rt.logger),
				mqttsn.WithMetrics(rt.metrics),
				mqttsn.OnEvent(func(c *mqttsn.Client, event error) {
					rt.logger.Info("client event", mqttsn.LogFields{"event": event.Error()})

					if errors.Is(event, mqttsn.ErrConnected) {
						go subscribeAll(c, rt.cfg.Client.Subscriptions, rt.logger)
					}
				}),
				newMessageRouter(rt.cfg.Client.Subscriptions, rt.logger).Option(),
			)
			if err != nil {
				return err
			}

			client := mqttsn.NewClient(opts...)

			return rt.serve(func(ctx context.Context) error {
				return client.Run(ctx)
			})
		},
	}
}

func subscribeAll(c *mqttsn.Client, subs []config.Subscription, logger mqttsn.Logger) {
	for _, sub := range subs {
		if err := c.Subscribe(sub.Topic, byte(sub.QoS)); err != nil {
			logger.Warn("subscribe failed", mqttsn.LogFields{
				mqttsn.LogFieldTopic: sub.Topic,
				mqttsn.LogFieldError: err.Error(),
			})
		}
	}
}

// newMessageRouter logs every delivered message under the subscription
// whose filter matches its topic.
func newMessageRouter(subs []config.Subscription, logger mqttsn.Logger) *router.Router {
	r := router.New()
	for _, sub := range subs {
		filter := sub.Topic
		r.Handle(func(msg *mqttsn.Message) {
			logger.Info("message", mqttsn.LogFields{
				"subscription":       filter,
				mqttsn.LogFieldTopic: msg.Topic,
				mqttsn.LogFieldQoS:   msg.QoS,
				"payload":            string(msg.Payload),
			})
		}, router.WithTopic(filter))
	}
	return r
}
