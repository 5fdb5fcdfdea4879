package cdc

// DisabledEventConsumer stands in for a consumer group that is turned off by configuration
type DisabledEventConsumer struct{}

func (d *DisabledEventConsumer) Start() error {
	return nil
}

func (d *DisabledEventConsumer) Stop() error {
	return nil
}
