package state

import (
	"cmp"
	"maps"
)

type qosPolicyFields struct {
	name        string
	dscpToQueue map[uint8]uint8
}

// QosPolicy maps DSCP code points onto egress queues.
type QosPolicy struct {
	node[qosPolicyFields]
}

// QosPolicyMap holds QoS policies by name.
type QosPolicyMap = NodeMap[string, *QosPolicy]

func NewQosPolicy(name string, dscpToQueue map[uint8]uint8) *QosPolicy {
	q := &QosPolicy{}
	q.fields = qosPolicyFields{name: name, dscpToQueue: maps.Clone(dscpToQueue)}
	if q.fields.dscpToQueue == nil {
		q.fields.dscpToQueue = map[uint8]uint8{}
	}
	return q
}

func NewQosPolicyMap() *QosPolicyMap {
	return NewNodeMap[string, *QosPolicy]("qos policy", cmp.Compare[string])
}

func (q *QosPolicy) Key() string { return q.getFields().name }

func (q *QosPolicy) Clone() *QosPolicy {
	f := *q.getFields()
	f.dscpToQueue = maps.Clone(f.dscpToQueue)
	c := &QosPolicy{}
	c.fields = f
	return c
}

func (q *QosPolicy) Equal(o *QosPolicy) bool {
	if q == o {
		return true
	}
	return q.getFields().name == o.getFields().name &&
		maps.Equal(q.getFields().dscpToQueue, o.getFields().dscpToQueue)
}

func (q *QosPolicy) GetName() string { return q.getFields().name }
func (q *QosPolicy) GetDscpMap() map[uint8]uint8 { return q.getFields().dscpToQueue }
func (q *QosPolicy) SetDscpMap(m map[uint8]uint8) {
	q.writableFields().dscpToQueue = maps.Clone(m)
}
