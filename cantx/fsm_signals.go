package cantx

// Front-subsystem periodic signals. Names follow the vehicle DBC.
const (
	PrimaryFlowRate             Signal = "PRIMARY_FLOW_RATE"
	PrimaryFlowRateOutOfRange   Signal = "PRIMARY_FLOW_RATE_OUT_OF_RANGE"
	SecondaryFlowRate           Signal = "SECONDARY_FLOW_RATE"
	SecondaryFlowRateOutOfRange Signal = "SECONDARY_FLOW_RATE_OUT_OF_RANGE"
	LeftWheelSpeed              Signal = "LEFT_WHEEL_SPEED"
	LeftWheelSpeedOutOfRange    Signal = "LEFT_WHEEL_SPEED_OUT_OF_RANGE"
	RightWheelSpeed             Signal = "RIGHT_WHEEL_SPEED"
	RightWheelSpeedOutOfRange   Signal = "RIGHT_WHEEL_SPEED_OUT_OF_RANGE"
	SteeringAngle               Signal = "STEERING_ANGLE"
	SteeringAngleOutOfRange     Signal = "STEERING_ANGLE_OUT_OF_RANGE"
	BrakePressure               Signal = "BRAKE_PRESSURE"
	BrakePressureOutOfRange     Signal = "BRAKE_PRESSURE_OUT_OF_RANGE"

	BrakeIsActuated                    Signal = "BRAKE_IS_ACTUATED"
	PressureSensorIsOpenOrShortCircuit Signal = "PRESSURE_SENSOR_IS_OPEN_OR_SHORT_CIRCUIT"
)

// Choice tables, one per signal family.
var (
	// FSM_NON_CRITICAL_ERRORS: every *_OUT_OF_RANGE signal.
	NonCriticalErrorsChoices = RangeChoices{OK: 0, Underflow: 1, Overflow: 2}

	// FSM_BRAKE: boolean brake signals.
	BrakeChoices = BoolChoices{False: 0, True: 1}
)
